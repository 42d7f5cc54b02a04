// ABOUTME: Tests for the audio status HTTP client
// ABOUTME: Covers status decoding, non-200 handling, URL resolution and header propagation

package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPFetcher_RejectsBadScheme(t *testing.T) {
	_, err := NewHTTPFetcher("ws://localhost:8000", nil, nil)
	assert.Error(t, err)

	_, err = NewHTTPFetcher("http://localhost:8000/", nil, nil)
	assert.NoError(t, err)
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio_status/pending-task":
			_, _ = w.Write([]byte(`{"status":"processing"}`))
		case "/audio_status/done-task":
			_, _ = w.Write([]byte(`{"status":"done","url":"/static/audio/done-task.mp3"}`))
		case "/audio_status/abs-task":
			_, _ = w.Write([]byte(`{"status":"done","url":"https://cdn.example.com/a.mp3"}`))
		case "/audio_status/failed-task":
			_, _ = w.Write([]byte(`{"status":"failed","error":"tts crashed"}`))
		case "/audio_status/bad-json":
			_, _ = w.Write([]byte(`{not json`))
		default:
			http.Error(w, `{"detail":"Task not found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL, nil, srv.Client())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := f.Fetch(ctx, "pending-task")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, StatusProcessing, res.Status)

	res, err = f.Fetch(ctx, "done-task")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, srv.URL+"/static/audio/done-task.mp3", res.URL)

	res, err = f.Fetch(ctx, "abs-task")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.mp3", res.URL)

	res, err = f.Fetch(ctx, "failed-task")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "tts crashed", res.Error)

	res, err = f.Fetch(ctx, "missing")
	require.NoError(t, err, "a 404 is a result, not an error")
	assert.Equal(t, http.StatusNotFound, res.HTTPStatus)
	assert.Empty(t, res.Status)

	_, err = f.Fetch(ctx, "bad-json")
	assert.Error(t, err)
}

func TestHTTPFetcher_SendsHeaders(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	f, err := NewHTTPFetcher(srv.URL, header, srv.Client())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", <-got)
}

func TestHTTPFetcher_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f, err := NewHTTPFetcher(addr, nil, nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "t1")
	assert.Error(t, err)
}
