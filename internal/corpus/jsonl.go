package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spboyer/portsel/internal/models"
)

const maxLineSize = 64 << 20

// Log-format keys. Every other key holding a number or a numeric array is a
// named baseline.
const (
	keyPath    = "~path"
	keyRaw     = "~raw"
	keyOptions = "~"
	keyWeight  = "~weight"
)

// ReadJSONL parses one record per line. Blank lines are ignored; malformed
// records are skipped and counted.
func ReadJSONL(r io.Reader, opts Options) (*models.Corpus, error) {
	b := newBuilder(opts)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		smp, reason := ParseRecord(line, opts)
		b.add(smp, reason)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return b.finish()
}

// ParseRecord decodes a single record in either the benchmark log format or
// the flat format. A non-empty reason means the record is malformed.
func ParseRecord(line []byte, opts Options) (models.Sample, string) {
	if opts.Cut {
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			line = bytes.TrimSpace(line[i+1:])
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return models.Sample{}, ReasonParse
	}
	_, hasRaw := fields[keyRaw]
	_, hasOptions := fields[keyOptions]
	if hasRaw || hasOptions {
		return parseLogRecord(fields, opts)
	}
	return parseFlatRecord(line, opts)
}

func parseLogRecord(fields map[string]json.RawMessage, opts Options) (models.Sample, string) {
	var s models.Sample
	if p, ok := fields[keyPath]; ok {
		_ = json.Unmarshal(p, &s.Path)
	}

	raw, ok := firstNumber(fields[keyRaw])
	if !ok {
		return s, ReasonRaw
	}
	s.Raw = toSize(raw)

	var groups [][]json.RawMessage
	if err := json.Unmarshal(fields[keyOptions], &groups); err != nil {
		return s, ReasonParse
	}
	if opts.Variant < 0 || opts.Variant >= len(groups) {
		return s, ReasonLength
	}
	group := groups[opts.Variant]
	s.Costs = make([]int64, len(group))
	for j, entry := range group {
		c, ok := firstNumber(entry)
		if !ok {
			return s, ReasonParse
		}
		s.Costs[j] = toSize(c)
	}

	s.Weight = 1
	if w, ok := fields[keyWeight]; ok {
		if err := json.Unmarshal(w, &s.Weight); err != nil {
			return s, ReasonParse
		}
	}

	for name, v := range fields {
		if strings.HasPrefix(name, "~") || !opts.tracks(name) {
			continue
		}
		if c, ok := firstNumber(v); ok {
			if s.Baselines == nil {
				s.Baselines = make(map[string]int64)
			}
			s.Baselines[name] = toSize(c)
		}
	}
	return s, ""
}

type flatRecord struct {
	Path      string             `json:"path"`
	Raw       *float64           `json:"raw"`
	Costs     []float64          `json:"costs"`
	Baselines map[string]float64 `json:"baselines"`
	Weight    *float64           `json:"weight"`
}

func parseFlatRecord(line []byte, opts Options) (models.Sample, string) {
	var rec flatRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return models.Sample{}, ReasonParse
	}
	s := models.Sample{Path: rec.Path, Weight: 1}
	if rec.Raw == nil {
		return s, ReasonRaw
	}
	s.Raw = toSize(*rec.Raw)
	if rec.Weight != nil {
		s.Weight = *rec.Weight
	}
	s.Costs = make([]int64, len(rec.Costs))
	for j, c := range rec.Costs {
		s.Costs[j] = toSize(c)
	}
	for name, v := range rec.Baselines {
		if name == models.RawBaseline || !opts.tracks(name) {
			continue
		}
		if s.Baselines == nil {
			s.Baselines = make(map[string]int64)
		}
		s.Baselines[name] = toSize(v)
	}
	return s, ""
}

// firstNumber accepts either a bare number or a non-empty array whose first
// element is a number, e.g. [size, ctime, dtime].
func firstNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return 0, false
	}
	if err := json.Unmarshal(arr[0], &f); err != nil {
		return 0, false
	}
	return f, true
}

func toSize(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return -1
	}
	r := math.Round(f)
	// conversion out of int64 range is platform dependent
	if r >= math.MaxInt64 || r < math.MinInt64 {
		return -1
	}
	return int64(r)
}
