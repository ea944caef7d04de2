package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        string
}

// fakeS3 answers PUT and HEAD requests like an S3 endpoint would.
func fakeS3(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		mu.Unlock()

		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func newFakeS3Storage(t *testing.T, srv *httptest.Server) *S3Storage {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	s3, err := NewS3Storage(u.Host, "access", "secret", "us-east-1", "assets", false)
	require.NoError(t, err)
	return s3
}

func TestNewS3Storage(t *testing.T) {
	s3, err := NewS3Storage("localhost:9000", "minioadmin", "minioadmin", "us-east-1", "assets", false)
	require.NoError(t, err)

	assert.Equal(t, "s3", s3.Name())
	assert.Equal(t, "assets", s3.bucket)
	assert.Equal(t, "us-east-1", s3.region)
}

func TestS3Storage_Upload(t *testing.T) {
	srv, requests := fakeS3(t)
	s3 := newFakeS3Storage(t, srv)
	content := "var a=1;"

	obj, err := s3.Upload(context.Background(), "site/1.min.js", strings.NewReader(content), int64(len(content)), &UploadOptions{
		ContentType: "application/javascript",
	})
	require.NoError(t, err)

	assert.Equal(t, "site/1.min.js", obj.Key)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", obj.ETag)

	var put *recordedRequest
	for _, r := range requests() {
		if r.method == http.MethodPut {
			put = &r
		}
	}
	require.NotNil(t, put)
	assert.Equal(t, "/assets/site/1.min.js", put.path)
	assert.Equal(t, "application/javascript", put.contentType)
	assert.Contains(t, put.body, content)
}

func TestS3Storage_Health(t *testing.T) {
	srv, _ := fakeS3(t)
	s3 := newFakeS3Storage(t, srv)

	assert.NoError(t, s3.Health(context.Background()))
}

// TestS3Storage_Integration runs against a real S3-compatible service when
// WEBMINIFIER_TEST_S3_ENDPOINT is set, e.g. a local MinIO container:
//
//	docker run -p 9000:9000 minio/minio server /data
func TestS3Storage_Integration(t *testing.T) {
	endpoint := os.Getenv("WEBMINIFIER_TEST_S3_ENDPOINT")
	if endpoint == "" || testing.Short() {
		t.Skip("Skipping S3 integration test: WEBMINIFIER_TEST_S3_ENDPOINT not set")
	}

	s3, err := NewS3Storage(endpoint, "minioadmin", "minioadmin", "us-east-1", "webminifier-test", false)
	require.NoError(t, err)

	ctx := context.Background()
	if err := s3.Health(ctx); err != nil {
		t.Skipf("Skipping S3 integration test: %v", err)
	}

	_, err = s3.Upload(ctx, "it/1.min.js", strings.NewReader("x"), 1, nil)
	require.NoError(t, err)

	exists, err := s3.Exists(ctx, "it/1.min.js")
	require.NoError(t, err)
	assert.True(t, exists)
}
