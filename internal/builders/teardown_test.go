package builders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/WarpBuilds/docker-configure/pkg/client"
)

func newTestReleaser(baseURL string) *Releaser {
	r := NewReleaser(client.New(baseURL, "token"), testLogger())
	r.retryDelay = time.Millisecond
	return r
}

func TestReleaseAllSuccess(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	failed := newTestReleaser(server.URL).ReleaseAll(context.Background(), []string{"b-1", "b-2"})
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"/api/v1/builders/b-1/teardown", "/api/v1/builders/b-2/teardown"}, seen)
}

func TestReleaseRetriesServerErrorOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	failed := newTestReleaser(server.URL).ReleaseAll(context.Background(), []string{"b-1"})
	assert.Equal(t, 0, failed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestReleaseGivesUpAfterOneRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	failed := newTestReleaser(server.URL).ReleaseAll(context.Background(), []string{"b-1"})
	assert.Equal(t, 1, failed)
	assert.Equal(t, int32(2), calls.Load(), "server errors get exactly one retry")
}

func TestReleaseNotFoundIsAlreadyGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	// A retried cleanup finds nothing to tear down; that is still success.
	releaser := newTestReleaser(server.URL)
	assert.Equal(t, 0, releaser.ReleaseAll(context.Background(), []string{"b-1", "b-2"}))
	assert.Equal(t, 0, releaser.ReleaseAll(context.Background(), []string{"b-1", "b-2"}))
}

func TestReleaseAllAttemptsEveryBuilder(t *testing.T) {
	var mu sync.Mutex
	attempted := map[string]bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		id := parts[len(parts)-2]
		mu.Lock()
		attempted[id] = true
		mu.Unlock()

		if id == "b-bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	failed := newTestReleaser(server.URL).ReleaseAll(context.Background(), []string{"b-bad", "b-2", "b-3"})
	assert.Equal(t, 1, failed)
	assert.Equal(t, map[string]bool{"b-bad": true, "b-2": true, "b-3": true}, attempted,
		"a failing builder must not stop the others from being released")
}
