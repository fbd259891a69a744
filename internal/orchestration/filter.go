package orchestration

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/spboyer/portsel/internal/models"
)

// FilterSamples returns the subset of samples whose Path or base name matches
// at least one of the given glob patterns. An empty patterns slice returns all
// samples unchanged.
func FilterSamples(samples []models.Sample, patterns []string) ([]models.Sample, error) {
	if len(patterns) == 0 {
		return samples, nil
	}

	var matched []models.Sample
	for _, s := range samples {
		ok, err := matchesAny(s, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// matchesAny reports whether a sample's path or base name matches any pattern.
func matchesAny(s models.Sample, patterns []string) (bool, error) {
	for _, p := range patterns {
		pathMatch, err := filepath.Match(p, s.Path)
		if err != nil {
			return false, fmt.Errorf("invalid sample filter pattern %q: %w", p, err)
		}
		if pathMatch {
			return true, nil
		}
		baseMatch, err := filepath.Match(p, path.Base(filepath.ToSlash(s.Path)))
		if err != nil {
			return false, fmt.Errorf("invalid sample filter pattern %q: %w", p, err)
		}
		if baseMatch {
			return true, nil
		}
	}
	return false, nil
}
