package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jobrunner/stacman/internal/domain"
)

// maxDocumentSize caps documents read by the Fetcher.
const maxDocumentSize = 64 << 20

// Fetcher reads documents from http(s) URLs and local paths. It implements
// output.Fetcher.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher whose HTTP requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch reads the document at href.
func (f *Fetcher) Fetch(ctx context.Context, href string) ([]byte, error) {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return f.fetchURL(ctx, href)
	}

	path := strings.TrimPrefix(href, "file://")
	data, err := os.ReadFile(path) //#nosec G304 -- reading user supplied catalogs is the purpose
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound("fetch", href)
	}
	if err != nil {
		return nil, &domain.StorageError{Operation: "fetch", Key: href, Err: err}
	}
	return data, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, href string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.StorageError{Operation: "fetch", Key: href, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, notFound("fetch", href)
	case resp.StatusCode != http.StatusOK:
		return nil, &domain.StorageError{Operation: "fetch", Key: href, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &domain.StorageError{Operation: "fetch", Key: href, Err: err}
	}
	return data, nil
}
