package stacjson

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memStorage implements output.ObjectStorage in memory.
type memStorage struct {
	base    string
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{base: "/srv/stac", objects: make(map[string][]byte)}
}

func (m *memStorage) List(_ context.Context) ([]output.StorageObject, error) {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	objs := make([]output.StorageObject, len(keys))
	for i, k := range keys {
		objs[i] = output.StorageObject{Key: k, Size: int64(len(m.objects[k]))}
	}
	return objs, nil
}

func (m *memStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, &domain.StorageError{Operation: "get", Key: key, Err: domain.ErrObjectNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Put(_ context.Context, key string, data []byte) error {
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStorage) Locator(key string) string {
	if key == "" {
		return m.base
	}
	return m.base + "/" + key
}

// mapFetcher implements output.Fetcher from a map of documents.
type mapFetcher map[string]string

func (f mapFetcher) Fetch(_ context.Context, href string) ([]byte, error) {
	doc, ok := f[href]
	if !ok {
		return nil, &domain.StorageError{Operation: "fetch", Key: href, Err: domain.ErrObjectNotFound}
	}
	return []byte(doc), nil
}
