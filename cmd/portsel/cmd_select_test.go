package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spboyer/portsel/internal/models"
	"github.com/spboyer/portsel/internal/orchestration"
	"github.com/spboyer/portsel/internal/spinner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioJSONL = `{"path":"a.bin","raw":1000,"costs":[500,800,900],"baselines":{"zlib":700}}
{"path":"b.bin","raw":1000,"costs":[900,500,800],"baselines":{"zlib":700}}
{"path":"c.bin","raw":1000,"costs":[800,900,500],"baselines":{"zlib":700}}
`

// workDir switches into a fresh directory so no outer .portsel.yaml applies.
func workDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeCorpus(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func runSelect(t *testing.T, args ...string) (*models.Summary, string, error) {
	t.Helper()
	cmd := newSelectCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		return nil, out.String(), err
	}
	var s models.Summary
	if jsonErr := json.Unmarshal(out.Bytes(), &s); jsonErr != nil {
		return nil, out.String(), nil
	}
	return &s, out.String(), nil
}

func TestSelectCommand_EndToEnd(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)

	s, _, err := runSelect(t, p, "-k", "2", "--seed", "empty", "--format", "json")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Len(t, s.Runs, 2)

	for _, r := range s.Runs {
		assert.Equal(t, []int{0, 1}, r.Indices())
		assert.Equal(t, 1800.0, r.Achieved)
		raw, ok := r.Share(models.RawBaseline)
		require.True(t, ok)
		assert.InDelta(t, 60.0, raw.Percent, 1e-9)
		zlib, ok := r.Share("zlib")
		require.True(t, ok)
		assert.InDelta(t, 1800.0/2100.0*100, zlib.Percent, 1e-9)
	}
	assert.Equal(t, 3, s.Configurations)
	assert.Equal(t, 2, s.Settings.Size)
}

func TestSelectCommand_SingleMode(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)

	s, _, err := runSelect(t, p, "-k", "1", "--mode", "exclude", "-f", "json")
	require.NoError(t, err)
	require.Len(t, s.Runs, 1)
	assert.Equal(t, models.PolicyExclude, s.Runs[0].Policy)
}

func TestSelectCommand_Stdin(t *testing.T) {
	workDir(t)

	cmd := newSelectCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(scenarioJSONL))
	cmd.SetArgs([]string{"-", "-k", "2", "-f", "json"})
	require.NoError(t, cmd.Execute())

	var s models.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &s))
	assert.Len(t, s.Runs, 2)
}

func TestSelectCommand_EmptyCorpus(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bad.jsonl", "not json\n{\"costs\":[1,2]}\n")

	_, _, err := runSelect(t, p, "-f", "json")
	require.Error(t, err)
	var emptyErr *EmptyCorpusError
	assert.True(t, errors.As(err, &emptyErr))
	assert.Contains(t, err.Error(), "2 skipped")
}

func TestSelectCommand_AllDegenerateExcluded(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "flat.jsonl",
		`{"path":"x.jpg","raw":100000,"costs":[99990,99995],"baselines":{"zlib":99990}}`+"\n")

	_, _, err := runSelect(t, p, "-k", "1", "--mode", "exclude", "-f", "json")
	require.Error(t, err)
	var emptyErr *EmptyCorpusError
	assert.True(t, errors.As(err, &emptyErr))
}

func TestSelectCommand_InvalidFlags(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"seed", []string{"--seed", "triple"}, "seed"},
		{"mode", []string{"--mode", "skip"}, "mode"},
		{"input format", []string{"--input-format", "xml"}, "format"},
		{"output format", []string{"-f", "xml"}, "unsupported format"},
		{"size", []string{"-k", "9"}, "size"},
		{"fractional penalty", []string{"--penalty", "0.5"}, "penalty must be at least 1"},
		{"zero penalty", []string{"--penalty", "0"}, "penalty must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runSelect(t, append([]string{p}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			var emptyErr *EmptyCorpusError
			assert.False(t, errors.As(err, &emptyErr))
		})
	}
}

func TestSelectCommand_ConfigFileAndOverrides(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)
	writeCorpus(t, dir, ".portsel.yaml", `
selection:
  size: 1
  seed: empty
degenerate:
  mode: exclude
input:
  descriptors: configs.yaml
report:
  format: json
`)
	writeCorpus(t, dir, "configs.yaml", "configurations:\n  - [\"-q1\"]\n  - [\"-q2\"]\n  - [\"-q3\"]\n")

	s, _, err := runSelect(t, p)
	require.NoError(t, err)
	require.Len(t, s.Runs, 1)
	require.Len(t, s.Runs[0].Portfolio, 1)
	assert.Equal(t, models.Descriptor{"-q1"}, s.Runs[0].Portfolio[0].Descriptor)

	// flags beat the file
	s, _, err = runSelect(t, p, "-k", "2")
	require.NoError(t, err)
	assert.Len(t, s.Runs[0].Portfolio, 2)
}

func TestSelectCommand_EligibilityRulesFromConfig(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)
	cfgPath := writeCorpus(t, dir, "custom.yaml", `
selection:
  size: 2
  seed: empty
eligibility:
  rules:
    - name: no-mixing
      forbid: ["-mixing=*"]
input:
  descriptors: configs.yaml
`)
	writeCorpus(t, dir, "configs.yaml", "configurations:\n  - [\"-mixing=2\"]\n  - [\"-mode=1\"]\n  - [\"-mode=2\"]\n")

	s, _, err := runSelect(t, p, "--config", cfgPath, "--mode", "exclude", "-f", "json")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, s.Runs[0].Indices())
}

func TestSelectCommand_IncludeFilter(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)

	s, _, err := runSelect(t, p, "-k", "1", "--seed", "empty", "--mode", "exclude", "--include", "c.*", "-f", "json")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Runs[0].Samples)
	assert.Equal(t, []int{2}, s.Runs[0].Indices())
}

func TestSelectCommand_OutputFileCSV(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)
	outFile := filepath.Join(dir, "result.csv")

	_, stdout, err := runSelect(t, p, "-k", "2", "-f", "csv", "-o", outFile)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "policy,samples,"))
	assert.True(t, strings.HasPrefix(lines[1], "exclude,3,"))
}

func TestSelectCommand_TableFormat(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)

	_, out, err := runSelect(t, p, "-k", "2", "-f", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "PORTFOLIO SELECTION")
	assert.Contains(t, out, "POLICY: exclude")
}

func TestSelectCommand_DefaultsToJSONWhenNotTerminal(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)

	s, _, err := runSelect(t, p, "-k", "2")
	require.NoError(t, err)
	require.NotNil(t, s, "output to a buffer should be JSON")
}

func TestSelectCommand_MetricsFile(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)
	metrics := filepath.Join(dir, "portsel.prom")

	_, _, err := runSelect(t, p, "-k", "2", "-f", "json", "--metrics-file", metrics)
	require.NoError(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `portsel_achieved_bytes{policy="exclude"} 1800`)
	assert.Contains(t, string(data), "portsel_records_read 3")
}

func TestSelectCommand_Cache(t *testing.T) {
	dir := workDir(t)
	p := writeCorpus(t, dir, "bench.jsonl", scenarioJSONL)
	cacheDir := filepath.Join(dir, "cache")

	first, _, err := runSelect(t, p, "-k", "2", "-f", "json", "--cache", "--cache-dir", cacheDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".json.zst"))

	second, _, err := runSelect(t, p, "-k", "2", "-f", "json", "--cache", "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// --no-cache wins
	other := filepath.Join(dir, "other-cache")
	_, _, err = runSelect(t, p, "-f", "json", "--cache", "--no-cache", "--cache-dir", other)
	require.NoError(t, err)
	_, err = os.Stat(other)
	assert.True(t, os.IsNotExist(err))
}

func TestSelectCommand_RequiresCorpusArg(t *testing.T) {
	cmd := newSelectCommand()
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}

func TestProgressSpinner_NotATerminal(t *testing.T) {
	listener, stop := progressSpinner(&bytes.Buffer{})
	assert.Nil(t, listener)
	stop()
}

func TestSpinnerListener(t *testing.T) {
	var out lockedBuffer
	s := spinner.Start(&out, "Selecting portfolio...")
	listener := spinnerListener(s)

	listener(orchestration.ProgressEvent{EventType: orchestration.EventPolicyStart, Policy: models.PolicyExclude, Samples: 3})
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Selecting portfolio (exclude, 3 samples)...")
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
