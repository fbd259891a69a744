// Package corpus ingests benchmark cost records into a [models.Corpus].
//
// Records come as JSON lines (the benchmark log format written by the
// measurement harness, or a flat format) or as CSV. Malformed records never
// abort a load: they are skipped and counted by reason. A load that accepts
// nothing fails with a [*LoadError] wrapping [ErrEmptyCorpus].
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/spboyer/portsel/internal/models"
)

// Format names an input encoding.
type Format string

const (
	// FormatAuto picks CSV for .csv locations and JSON lines otherwise.
	FormatAuto  Format = ""
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatAuto, FormatJSONL, FormatCSV:
		return f, nil
	case "auto":
		return FormatAuto, nil
	}
	return "", fmt.Errorf("unknown input format %q: must be jsonl or csv", s)
}

// DetectFormat resolves FormatAuto from the location's extension, looking
// through a compression suffix.
func DetectFormat(location string) Format {
	name, _ := trimCompression(location)
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return FormatCSV
	}
	return FormatJSONL
}

// Options controls record decoding.
type Options struct {
	Format Format
	// Cut strips everything up to and including the first ':' of each line.
	Cut bool
	// Variant selects the option group in the log format.
	Variant int
	// Baselines restricts which named baselines are kept. Empty keeps all.
	Baselines []string
	// Configurations fixes the expected cost-vector length. When empty the
	// first well-formed record decides and descriptors are synthesized.
	Configurations []models.Configuration
}

func (o Options) tracks(name string) bool {
	if len(o.Baselines) == 0 {
		return true
	}
	for _, b := range o.Baselines {
		if b == name {
			return true
		}
	}
	return false
}

// Load opens location and parses it into a corpus.
func Load(ctx context.Context, opener Opener, location string, opts Options) (*models.Corpus, error) {
	rc, err := opener.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	format := opts.Format
	if format == FormatAuto {
		format = DetectFormat(location)
	}

	var c *models.Corpus
	switch format {
	case FormatCSV:
		c, err = ReadCSV(rc, opts)
	default:
		c, err = ReadJSONL(rc, opts)
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Location = location
			return nil, le
		}
		return nil, fmt.Errorf("loading %s: %w", location, err)
	}

	if n := c.Stats.TotalSkipped(); n > 0 {
		slog.Warn("Skipped malformed records", "location", location, "skipped", n, "reasons", FormatSkips(c.Stats))
	}
	slog.Debug("Loaded corpus", "location", location, "format", string(format),
		"samples", len(c.Samples), "configurations", len(c.Configurations))
	return c, nil
}

// builder accumulates accepted samples and skip counts.
type builder struct {
	m      int
	corpus *models.Corpus
}

func newBuilder(opts Options) *builder {
	b := &builder{m: -1, corpus: &models.Corpus{}}
	if len(opts.Configurations) > 0 {
		b.m = len(opts.Configurations)
		b.corpus.Configurations = opts.Configurations
	}
	return b
}

func (b *builder) add(s models.Sample, reason string) {
	b.corpus.Stats.Read++
	if reason == "" {
		reason = b.check(s)
	}
	if reason != "" {
		b.corpus.Stats.Skip(reason)
		return
	}
	if b.m < 0 {
		b.m = len(s.Costs)
	}
	b.corpus.Samples = append(b.corpus.Samples, s)
	b.corpus.Stats.Accepted++
}

func (b *builder) check(s models.Sample) string {
	if s.Raw < 0 {
		return ReasonRaw
	}
	for _, c := range s.Costs {
		if c < 0 {
			return ReasonNegative
		}
	}
	for _, v := range s.Baselines {
		if v < 0 {
			return ReasonNegative
		}
	}
	if math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) || s.Weight <= 0 {
		return ReasonWeight
	}
	if len(s.Costs) == 0 || (b.m >= 0 && len(s.Costs) != b.m) {
		return ReasonLength
	}
	return ""
}

func (b *builder) finish() (*models.Corpus, error) {
	if b.corpus.Stats.Accepted == 0 {
		return nil, &LoadError{Location: "<input>", Stats: b.corpus.Stats, Err: ErrEmptyCorpus}
	}
	if len(b.corpus.Configurations) == 0 {
		b.corpus.Configurations = models.DefaultConfigurations(b.m)
	}
	return b.corpus, nil
}
