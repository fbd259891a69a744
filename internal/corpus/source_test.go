package corpus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const flatRecords = `{"raw": 1000, "costs": [500, 800, 900]}
{"raw": 1000, "costs": [900, 500, 800]}
{"raw": 1000, "costs": [800, 900, 500]}
`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func zstdBytes(t *testing.T, data string) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close() //nolint:errcheck
	return enc.EncodeAll([]byte(data), nil)
}

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestSources_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"plain.jsonl":     []byte(flatRecords),
		"packed.jsonl.zst": zstdBytes(t, flatRecords),
		"packed.jsonl.gz":  gzipBytes(t, flatRecords),
	}

	src := NewSources()
	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			rc, err := src.Open(context.Background(), writeFile(t, dir, name, data))
			require.NoError(t, err)
			assert.Equal(t, flatRecords, readAll(t, rc))
		})
	}
}

func TestSources_MissingFile(t *testing.T) {
	_, err := NewSources().Open(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSources_Stdin(t *testing.T) {
	src := &Sources{Stdin: strings.NewReader(flatRecords)}
	rc, err := src.Open(context.Background(), Stdin)
	require.NoError(t, err)
	assert.Equal(t, flatRecords, readAll(t, rc))
}

func TestSources_Blob(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := NewMockblobDownloader(ctrl)

	var gotService string
	src := &Sources{newBlobClient: func(serviceURL string) (blobDownloader, error) {
		gotService = serviceURL
		return blobs, nil
	}}

	blobs.EXPECT().
		DownloadStream(gomock.Any(), "bench", "runs/2024/records.jsonl.zst").
		Return(io.NopCloser(bytes.NewReader(zstdBytes(t, flatRecords))), nil)

	rc, err := src.Open(context.Background(), "https://acct.blob.core.windows.net/bench/runs/2024/records.jsonl.zst")
	require.NoError(t, err)
	assert.Equal(t, flatRecords, readAll(t, rc))
	assert.Equal(t, "https://acct.blob.core.windows.net/", gotService)
}

func TestSources_BlobNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := NewMockblobDownloader(ctrl)
	src := &Sources{newBlobClient: func(string) (blobDownloader, error) { return blobs, nil }}

	blobs.EXPECT().
		DownloadStream(gomock.Any(), "bench", "missing.jsonl").
		Return(nil, &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "BlobNotFound"})

	_, err := src.Open(context.Background(), "https://acct.blob.core.windows.net/bench/missing.jsonl")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSources_BlobOtherError(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := NewMockblobDownloader(ctrl)
	src := &Sources{newBlobClient: func(string) (blobDownloader, error) { return blobs, nil }}

	boom := errors.New("connection reset")
	blobs.EXPECT().DownloadStream(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := src.Open(context.Background(), "https://acct.blob.core.windows.net/bench/a.jsonl")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, os.ErrNotExist)
}

func TestParseBlobURL(t *testing.T) {
	tests := []struct {
		location  string
		service   string
		container string
		blob      string
		wantErr   bool
	}{
		{"https://acct.blob.core.windows.net/c/b.jsonl", "https://acct.blob.core.windows.net/", "c", "b.jsonl", false},
		{"https://acct.blob.core.windows.net/c/dir/b.csv?sv=1&sig=x", "https://acct.blob.core.windows.net/?sv=1&sig=x", "c", "dir/b.csv", false},
		{"https://acct.blob.core.windows.net/c", "", "", "", true},
		{"https://acct.blob.core.windows.net/", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			service, container, blob, err := ParseBlobURL(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.service, service)
			assert.Equal(t, tt.container, container)
			assert.Equal(t, tt.blob, blob)
		})
	}
}

func TestIsBlobURL(t *testing.T) {
	assert.True(t, IsBlobURL("https://acct.blob.core.windows.net/c/b"))
	assert.False(t, IsBlobURL("http://acct.blob.core.windows.net/c/b"))
	assert.False(t, IsBlobURL("https://example.com/c/b"))
	assert.False(t, IsBlobURL("records.jsonl"))
	assert.False(t, IsBlobURL("-"))
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, DetectFormat("costs.csv"))
	assert.Equal(t, FormatCSV, DetectFormat("costs.CSV.zst"))
	assert.Equal(t, FormatCSV, DetectFormat("https://acct.blob.core.windows.net/c/costs.csv.gz?sig=x"))
	assert.Equal(t, FormatJSONL, DetectFormat("records.jsonl.gz"))
	assert.Equal(t, FormatJSONL, DetectFormat("-"))
}
