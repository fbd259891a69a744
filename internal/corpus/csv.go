package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spboyer/portsel/internal/models"
)

// CSV column names. Baseline and cost columns carry a prefix:
// "baseline:zlib", "cost:0", "cost:1", ...
const (
	colPath           = "path"
	colRaw            = "raw"
	colWeight         = "weight"
	colBaselinePrefix = "baseline:"
	colCostPrefix     = "cost:"
)

type csvLayout struct {
	path, raw, weight int
	baselines         map[string]int
	costs             []int
}

// ReadCSV parses a header row followed by one sample per row. A row with the
// wrong number of columns is a hard error; a row with an unparsable number is
// skipped and counted.
func ReadCSV(r io.Reader, opts Options) (*models.Corpus, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv: empty input (no header row)")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: parse header: %w", err)
	}
	layout, err := parseCSVHeader(header, opts)
	if err != nil {
		return nil, err
	}

	b := newBuilder(opts)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		smp, reason := layout.sample(record)
		b.add(smp, reason)
	}
	return b.finish()
}

func parseCSVHeader(header []string, opts Options) (*csvLayout, error) {
	l := &csvLayout{path: -1, raw: -1, weight: -1, baselines: map[string]int{}}
	costCols := map[int]int{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case h == colPath:
			l.path = i
		case h == colRaw:
			l.raw = i
		case h == colWeight:
			l.weight = i
		case strings.HasPrefix(h, colBaselinePrefix):
			name := strings.TrimPrefix(h, colBaselinePrefix)
			if name != "" && name != models.RawBaseline && opts.tracks(name) {
				l.baselines[name] = i
			}
		case strings.HasPrefix(h, colCostPrefix):
			j, err := strconv.Atoi(strings.TrimPrefix(h, colCostPrefix))
			if err != nil || j < 0 {
				return nil, fmt.Errorf("csv: invalid cost column %q", h)
			}
			if _, dup := costCols[j]; dup {
				return nil, fmt.Errorf("csv: duplicate cost column %q", h)
			}
			costCols[j] = i
		}
	}
	if l.raw < 0 {
		return nil, fmt.Errorf("csv: header has no %q column", colRaw)
	}
	if len(costCols) == 0 {
		return nil, fmt.Errorf("csv: header has no %q columns", colCostPrefix+"<index>")
	}
	l.costs = make([]int, len(costCols))
	for j := range l.costs {
		col, ok := costCols[j]
		if !ok {
			return nil, fmt.Errorf("csv: cost columns must be numbered 0..%d, missing cost:%d", len(costCols)-1, j)
		}
		l.costs[j] = col
	}
	return l, nil
}

func (l *csvLayout) sample(record []string) (models.Sample, string) {
	s := models.Sample{Weight: 1}
	if l.path >= 0 {
		s.Path = record[l.path]
	}
	raw, err := parseSize(record[l.raw])
	if err != nil {
		return s, ReasonRaw
	}
	s.Raw = raw
	if l.weight >= 0 && strings.TrimSpace(record[l.weight]) != "" {
		w, err := strconv.ParseFloat(strings.TrimSpace(record[l.weight]), 64)
		if err != nil {
			return s, ReasonParse
		}
		s.Weight = w
	}
	s.Costs = make([]int64, len(l.costs))
	for j, col := range l.costs {
		c, err := parseSize(record[col])
		if err != nil {
			return s, ReasonParse
		}
		s.Costs[j] = c
	}
	for name, col := range l.baselines {
		if strings.TrimSpace(record[col]) == "" {
			continue
		}
		v, err := parseSize(record[col])
		if err != nil {
			return s, ReasonParse
		}
		if s.Baselines == nil {
			s.Baselines = make(map[string]int64, len(l.baselines))
		}
		s.Baselines[name] = v
	}
	return s, ""
}

func parseSize(field string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	return toSize(f), nil
}
