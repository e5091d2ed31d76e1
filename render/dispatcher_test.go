package render

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatcher(url string) *Dispatcher {
	return &Dispatcher{
		url:    url,
		secret: "s3cret",
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

func TestDispatchOK(t *testing.T) {
	var gotSecret string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Webhook-Secret")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := testDispatcher(srv.URL)
	result, err := d.Dispatch(context.Background(), Envelope{
		Type:    TypeVideoGeneration,
		Payload: VideoPayload{VideoID: uuid.New(), Title: "A Tale"},
	})

	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, "s3cret", gotSecret)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &env))
	assert.Equal(t, TypeVideoGeneration, env["type"])
}

func TestDispatchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	result, err := testDispatcher(srv.URL).Dispatch(context.Background(), Envelope{Type: TypeImagePreview})

	require.NoError(t, err)
	assert.True(t, result.RateLimited())
	assert.Equal(t, 120, result.RetryAfter)
}

func TestDispatchRateLimitedDefaultRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	result, err := testDispatcher(srv.URL).Dispatch(context.Background(), Envelope{Type: TypeImagePreview})

	require.NoError(t, err)
	assert.Equal(t, DefaultRetryAfter, result.RetryAfter)
}

func TestDispatchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	result, err := testDispatcher(srv.URL).Dispatch(context.Background(), Envelope{Type: TypeVideoGeneration})

	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.False(t, result.RateLimited())
	assert.Contains(t, result.Body, "renderer exploded")
}

func TestDispatchNetworkError(t *testing.T) {
	// nothing listens here
	result, err := testDispatcher("http://127.0.0.1:1").Dispatch(context.Background(), Envelope{Type: TypeVideoGeneration})
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestStorageDeleteObject(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Query().Get("path")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &StorageClient{baseURL: srv.URL, secret: "s3cret", client: srv.Client()}
	require.NoError(t, s.DeleteObject(context.Background(), "videos/2026/x.mp4"))
	assert.Equal(t, "videos/2026/x.mp4", gotPath)

	// empty path is a no-op
	require.NoError(t, s.DeleteObject(context.Background(), ""))
}

func TestStorageDeleteObjectMissingIsDeleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := &StorageClient{baseURL: srv.URL, client: srv.Client()}
	assert.NoError(t, s.DeleteObject(context.Background(), "gone.mp4"))
}

func TestStorageDeleteObjectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := &StorageClient{baseURL: srv.URL, client: srv.Client()}
	assert.Error(t, s.DeleteObject(context.Background(), "x.mp4"))
}
