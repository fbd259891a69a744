package corpus

//go:generate go run go.uber.org/mock/mockgen -source=source.go -destination=mock_source_test.go -package=corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stdin is the location that reads the corpus from standard input.
const Stdin = "-"

const blobHostSuffix = ".blob.core.windows.net"

// Opener resolves a corpus location to a readable stream.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// blobDownloader is just an interface over [*azblob.Client]
type blobDownloader interface {
	// DownloadStream maps to [azblob.Client.DownloadStream], returning the body
	DownloadStream(ctx context.Context, container, blob string) (io.ReadCloser, error)
}

// Sources opens local files, standard input and Azure Blob Storage URLs.
// Locations ending in .zst or .gz are decompressed transparently.
type Sources struct {
	Stdin io.Reader

	newBlobClient func(serviceURL string) (blobDownloader, error)
}

// NewSources returns an Opener backed by the process's stdin and the default
// Azure credential chain.
func NewSources() *Sources {
	return &Sources{
		Stdin:         os.Stdin,
		newBlobClient: newAzureBlobClient,
	}
}

// Open implements [Opener].
func (s *Sources) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	rc, err := s.openRaw(ctx, location)
	if err != nil {
		return nil, err
	}
	return decompress(location, rc)
}

func (s *Sources) openRaw(ctx context.Context, location string) (io.ReadCloser, error) {
	switch {
	case location == Stdin:
		in := s.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), nil
	case IsBlobURL(location):
		return s.openBlob(ctx, location)
	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("opening corpus: %w", err)
		}
		return f, nil
	}
}

func (s *Sources) openBlob(ctx context.Context, location string) (io.ReadCloser, error) {
	serviceURL, container, blob, err := ParseBlobURL(location)
	if err != nil {
		return nil, err
	}
	client, err := s.newBlobClient(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("creating blob client for %s: %w", serviceURL, err)
	}
	body, err := client.DownloadStream(ctx, container, blob)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("blob %s/%s: %w", container, blob, os.ErrNotExist)
		}
		return nil, fmt.Errorf("downloading blob %s/%s: %w", container, blob, err)
	}
	return body, nil
}

// IsBlobURL reports whether location addresses Azure Blob Storage.
func IsBlobURL(location string) bool {
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "https" {
		return false
	}
	return strings.HasSuffix(u.Hostname(), blobHostSuffix)
}

// ParseBlobURL splits https://<account>.blob.core.windows.net/<container>/<blob>
// into the service URL, container and blob name. A SAS query string stays on
// the service URL.
func ParseBlobURL(location string) (serviceURL, container, blob string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", "", fmt.Errorf("parsing blob URL: %w", err)
	}
	container, blob, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if !ok || container == "" || blob == "" {
		return "", "", "", fmt.Errorf("blob URL %q must name a container and a blob", location)
	}
	serviceURL = u.Scheme + "://" + u.Host + "/"
	if u.RawQuery != "" {
		serviceURL += "?" + u.RawQuery
	}
	return serviceURL, container, blob, nil
}

type azureBlobClient struct {
	inner *azblob.Client
}

func newAzureBlobClient(serviceURL string) (blobDownloader, error) {
	if strings.Contains(serviceURL, "?") {
		client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
		if err != nil {
			return nil, err
		}
		return &azureBlobClient{inner: client}, nil
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving Azure credential: %w", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, err
	}
	return &azureBlobClient{inner: client}, nil
}

func (c *azureBlobClient) DownloadStream(ctx context.Context, container, blob string) (io.ReadCloser, error) {
	resp, err := c.inner.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// trimCompression strips a recognized compression suffix, ignoring any query.
func trimCompression(location string) (string, string) {
	name := location
	if IsBlobURL(location) {
		if u, err := url.Parse(location); err == nil {
			name = u.Path
		}
	}
	for _, ext := range []string{".zst", ".gz"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext), ext
		}
	}
	return name, ""
}

type stackedReadCloser struct {
	io.Reader
	close func() error
}

func (s *stackedReadCloser) Close() error { return s.close() }

func decompress(location string, rc io.ReadCloser) (io.ReadCloser, error) {
	_, ext := trimCompression(location)
	switch ext {
	case ".zst":
		dec, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close() //nolint:errcheck
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return &stackedReadCloser{Reader: dec, close: func() error {
			dec.Close()
			return rc.Close()
		}}, nil
	case ".gz":
		gz, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close() //nolint:errcheck
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return &stackedReadCloser{Reader: gz, close: func() error {
			return errors.Join(gz.Close(), rc.Close())
		}}, nil
	}
	return rc, nil
}
