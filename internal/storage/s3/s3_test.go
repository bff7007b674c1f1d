package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	appconfig "github.com/event-scraper/event-scraper/internal/config"
	"github.com/event-scraper/event-scraper/internal/storage"
)

// ---------------------------------------------------------------------------
// New() — constructor validation (no AWS connection required)
// ---------------------------------------------------------------------------

func TestNew_MissingBucket(t *testing.T) {
	_, err := New(&appconfig.S3StorageConfig{Region: "us-east-1"})
	if err == nil {
		t.Error("New() = nil error, want error for missing bucket")
	}
}

func TestNew_MissingRegion(t *testing.T) {
	_, err := New(&appconfig.S3StorageConfig{Bucket: "events"})
	if err == nil {
		t.Error("New() = nil error, want error for missing region")
	}
}

func TestNew_StaticAuth_MissingKeys(t *testing.T) {
	_, err := New(&appconfig.S3StorageConfig{
		Bucket:     "events",
		Region:     "us-east-1",
		AuthMethod: "static",
	})
	if err == nil {
		t.Error("New() = nil error, want error for static auth with missing keys")
	}
}

func TestNew_UnsupportedAuthMethod(t *testing.T) {
	_, err := New(&appconfig.S3StorageConfig{
		Bucket:     "events",
		Region:     "us-east-1",
		AuthMethod: "oidc",
	})
	if err == nil {
		t.Error("New() = nil error, want error for unsupported auth method")
	}
}

func TestNew_AssumeRole_MissingRoleARN(t *testing.T) {
	_, err := New(&appconfig.S3StorageConfig{
		Bucket:     "events",
		Region:     "us-east-1",
		AuthMethod: "assume_role",
	})
	if err == nil {
		t.Error("New() = nil error, want error for assume_role auth with missing role_arn")
	}
}

func TestNew_AssumeRole_WithExternalID(t *testing.T) {
	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "events",
		Region:          "us-east-1",
		AuthMethod:      "assume_role",
		RoleARN:         "arn:aws:iam::123456789:role/scraper",
		RoleSessionName: "event-scraper",
		ExternalID:      "external-id-123",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s == nil {
		t.Error("New() returned nil storage")
	}
}

func TestNew_ImplicitStaticAuth(t *testing.T) {
	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "events",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s.bucket != "events" {
		t.Errorf("bucket = %q, want events", s.bucket)
	}
}

// ---------------------------------------------------------------------------
// Mock S3-compatible HTTP server for operations tests
// ---------------------------------------------------------------------------

type s3MockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// newS3TestStorage creates an S3Storage backed by a mock server speaking just
// enough of the path-style S3 REST API for object CRUD and ListObjectsV2.
func newS3TestStorage(t *testing.T) (*S3Storage, *s3MockStore) {
	t.Helper()

	const bucket = "test-bucket"
	ms := &s3MockStore{objects: map[string][]byte{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/"+bucket)
		key := strings.TrimPrefix(path, "/")

		if key == "" {
			if r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2" {
				prefix := r.URL.Query().Get("prefix")
				ms.mu.Lock()
				var keys []string
				for k := range ms.objects {
					if strings.HasPrefix(k, prefix) {
						keys = append(keys, k)
					}
				}
				ms.mu.Unlock()
				sort.Sort(sort.Reverse(sort.StringSlice(keys)))
				w.Header().Set("Content-Type", "application/xml")
				fmt.Fprint(w, `<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
				for _, k := range keys {
					fmt.Fprintf(w, `<Contents><Key>%s</Key></Contents>`, k)
				}
				fmt.Fprint(w, `</ListBucketResult>`)
				return
			}
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		ms.mu.Lock()
		defer ms.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			ms.objects[key] = data
			w.Header().Set("ETag", `"test-etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			data, ok := ms.objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
		case http.MethodHead:
			data, ok := ms.objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			delete(ms.objects, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          bucket,
		Region:          "us-east-1",
		AuthMethod:      "static",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        srv.URL,
	})
	if err != nil {
		t.Fatalf("New() for mock S3: %v", err)
	}

	return s, ms
}

// ---------------------------------------------------------------------------
// Upload / Download
// ---------------------------------------------------------------------------

func TestS3_Upload(t *testing.T) {
	s, ms := newS3TestStorage(t)

	data := []byte(`{"data":{"event":{"name":"ETHBerlin"}}}`)
	result, err := s.Upload(context.Background(), "data/luma_abc.json", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if result.Path != "data/luma_abc.json" {
		t.Errorf("Path = %q", result.Path)
	}
	if result.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", result.Size, len(data))
	}
	if len(result.Checksum) != 64 {
		t.Errorf("Checksum length = %d, want 64 (SHA256 hex)", len(result.Checksum))
	}
	if _, ok := ms.objects["data/luma_abc.json"]; !ok {
		t.Error("object not stored in mock")
	}
}

func TestS3_Download(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	want := []byte("[]")
	if _, err := s.Upload(ctx, "cleaned_events/cleaned_events.json", bytes.NewReader(want), int64(len(want))); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rc, err := s.Download(ctx, "cleaned_events/cleaned_events.json")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()

	if !bytes.Equal(got, want) {
		t.Errorf("Download content = %q, want %q", got, want)
	}
}

func TestS3_Download_NotFound(t *testing.T) {
	s, _ := newS3TestStorage(t)

	_, err := s.Download(context.Background(), "nonexistent.json")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Delete / Exists
// ---------------------------------------------------------------------------

func TestS3_Delete(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, "todel.json", strings.NewReader("{}"), 2); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := s.Delete(ctx, "todel.json"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	ok, err := s.Exists(ctx, "todel.json")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if ok {
		t.Error("Exists = true after delete, want false")
	}
}

func TestS3_Exists_True(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, "exists.json", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	ok, err := s.Exists(ctx, "exists.json")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !ok {
		t.Error("Exists = false for existing key, want true")
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestS3_List_PrefixSorted(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	for _, k := range []string{"data/luma_b.json", "data/luma_a.json", "cleaned_events/cleaned_events.json"} {
		if _, err := s.Upload(ctx, k, strings.NewReader("{}"), 2); err != nil {
			t.Fatalf("Upload(%s): %v", k, err)
		}
	}

	keys, err := s.List(ctx, "data/luma_")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "data/luma_a.json" || keys[1] != "data/luma_b.json" {
		t.Errorf("List() = %v, want [data/luma_a.json data/luma_b.json]", keys)
	}
}
