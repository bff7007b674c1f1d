package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/event-scraper/event-scraper/internal/config"
	"github.com/event-scraper/event-scraper/internal/storage"
)

// ---------------------------------------------------------------------------
// In-memory Storage implementation for factory and helper tests
// ---------------------------------------------------------------------------

type memStorage struct {
	objects map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{objects: map[string][]byte{}} }

func (m *memStorage) Upload(_ context.Context, path string, r io.Reader, _ int64) (*storage.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[path] = data
	return &storage.UploadResult{Path: path, Size: int64(len(data))}, nil
}

func (m *memStorage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := m.objects[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (m *memStorage) Delete(_ context.Context, path string) error {
	delete(m.objects, path)
	return nil
}

func (m *memStorage) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

func (m *memStorage) List(_ context.Context, _ string) ([]string, error) { return nil, nil }

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestRegister_AddsFactory(t *testing.T) {
	storage.Register("test-backend", func(_ *config.Config) (storage.Storage, error) {
		return newMemStorage(), nil
	})

	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "test-backend"

	s, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("NewStorage() error: %v", err)
	}
	if s == nil {
		t.Fatal("NewStorage() returned nil")
	}

	found := false
	for _, name := range storage.Registered() {
		if name == "test-backend" {
			found = true
		}
	}
	if !found {
		t.Errorf("Registered() = %v, want test-backend listed", storage.Registered())
	}
}

// ---------------------------------------------------------------------------
// NewStorage
// ---------------------------------------------------------------------------

func TestNewStorage_UnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "completely-unknown-backend"

	_, err := storage.NewStorage(cfg)
	if err == nil {
		t.Error("NewStorage() = nil error, want error for unregistered backend")
	}
}

func TestNewStorage_EmptyBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = ""

	_, err := storage.NewStorage(cfg)
	if err == nil {
		t.Error("NewStorage() = nil error, want error for empty backend name")
	}
}

// ---------------------------------------------------------------------------
// ReadAll / WriteBytes
// ---------------------------------------------------------------------------

func TestWriteBytesThenReadAll(t *testing.T) {
	ctx := context.Background()
	s := newMemStorage()

	res, err := storage.WriteBytes(ctx, s, "data/luma_abc.json", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("WriteBytes() error: %v", err)
	}
	if res.Size != 11 {
		t.Errorf("Size = %d, want 11", res.Size)
	}

	got, err := storage.ReadAll(ctx, s, "data/luma_abc.json")
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("ReadAll() = %q", got)
	}
}

func TestReadAll_MissingPropagatesNotFound(t *testing.T) {
	_, err := storage.ReadAll(context.Background(), newMemStorage(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ReadAll() error = %v, want ErrNotFound", err)
	}
}
