package corpus

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spboyer/portsel/internal/models"
)

// ErrEmptyCorpus is returned when no record survived ingestion.
var ErrEmptyCorpus = errors.New("corpus is empty")

// Skip reasons recorded in [models.SkipStats].
const (
	ReasonParse    = "parse"
	ReasonLength   = "length"
	ReasonRaw      = "raw"
	ReasonNegative = "negative"
	ReasonWeight   = "weight"
)

// LoadError is a structural ingestion failure. It carries the skip counts so
// the caller can tell an empty file from a file full of malformed records.
type LoadError struct {
	Location string
	Stats    models.SkipStats
	Err      error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("loading %s: %v", e.Location, e.Err)
	if e.Stats.Read == 0 {
		return msg + " (no records)"
	}
	return fmt.Sprintf("%s (%d read, %d skipped: %s)", msg, e.Stats.Read, e.Stats.TotalSkipped(), FormatSkips(e.Stats))
}

func (e *LoadError) Unwrap() error { return e.Err }

// FormatSkips renders skip counts as "reason=n" pairs in reason order.
func FormatSkips(s models.SkipStats) string {
	if len(s.Skipped) == 0 {
		return "none"
	}
	reasons := make([]string, 0, len(s.Skipped))
	for r := range s.Skipped {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", r, s.Skipped[r])
	}
	return strings.Join(parts, ", ")
}
