// ABOUTME: End-to-end session tests against the scripted backend
// ABOUTME: Real WebSocket transport, HTTP status fetcher, voice poller, markdown and metrics

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/nexus-chat/internal/audio"
	"github.com/2389/nexus-chat/internal/fakebackend"
	"github.com/2389/nexus-chat/internal/markdown"
	"github.com/2389/nexus-chat/internal/metrics"
	"github.com/2389/nexus-chat/internal/progress"
	"github.com/2389/nexus-chat/internal/transport"
)

type lockedProgress struct {
	mu    sync.Mutex
	steps []progress.Entry
}

func (p *lockedProgress) ShowPlaceholder(string) {}
func (p *lockedProgress) HidePlaceholder()       {}
func (p *lockedProgress) AppendStep(e progress.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, e)
}

func (p *lockedProgress) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps)
}

type urlPlayer struct {
	mu   sync.Mutex
	urls []string
}

func (p *urlPlayer) Play(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	return nil
}

func (p *urlPlayer) Stop() {}

func (p *urlPlayer) URLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

type endToEnd struct {
	c        *Controller
	messages *recordingMessages
	progress *lockedProgress
	player   *urlPlayer
	metrics  *metrics.Collector
	backend  *httptest.Server
}

func startEndToEnd(t *testing.T) *endToEnd {
	t.Helper()

	backend := httptest.NewServer(fakebackend.New(fakebackend.Config{
		ProcessingPolls: 1,
		NewTaskID:       func() string { return "abc123" },
	}).Handler())
	t.Cleanup(backend.Close)

	client := transport.New(transport.Config{
		URL:            "ws" + strings.TrimPrefix(backend.URL, "http") + "/ws/user-1",
		ReconnectDelay: 20 * time.Millisecond,
	})
	fetcher, err := audio.NewHTTPFetcher(backend.URL, nil, backend.Client())
	require.NoError(t, err)

	e := &endToEnd{
		messages: &recordingMessages{},
		progress: &lockedProgress{},
		player:   &urlPlayer{},
		metrics:  metrics.New(),
		backend:  backend,
	}
	poller := audio.NewPoller(audio.Config{
		Fetcher:  fetcher,
		Player:   e.player,
		Interval: 10 * time.Millisecond,
	})

	e.c, err = New(Deps{
		Transport: client,
		Messages:  e.messages,
		Progress:  e.progress,
		Renderer:  markdown.NewPlain(),
		Voice:     poller,
		Metrics:   e.metrics,
	}, Options{ThinkingTick: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = client.Run(ctx) }()
	go func() { defer wg.Done(); _ = e.c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	require.Eventually(t, func() bool {
		st, err := e.c.Snapshot(ctx)
		return err == nil && st.Connection == transport.StateOpen
	}, 2*time.Second, 10*time.Millisecond)
	return e
}

func (e *endToEnd) scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	e.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestEndToEnd_AnswerAndVoice(t *testing.T) {
	e := startEndToEnd(t)

	e.c.Submit("สวัสดี")

	require.Eventually(t, func() bool { return len(e.messages.Replies()) == 1 }, 3*time.Second, 10*time.Millisecond)
	reply := e.messages.Replies()[0]
	assert.False(t, reply.Failed)
	assert.Equal(t, "GENERAL_HANDLER", reply.Agent)
	assert.Contains(t, reply.Text, "ได้รับคำถาม: สวัสดี")
	assert.NotContains(t, reply.Text, "**", "answer passed through the markdown renderer")
	assert.Equal(t, 4, e.progress.Len())

	require.Eventually(t, func() bool { return len(e.player.URLs()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, e.backend.URL+"/static/audio/abc123.wav", e.player.URLs()[0])

	require.Eventually(t, func() bool {
		return strings.Contains(e.scrape(t), `nexus_chat_voice_polls_total{outcome="done"} 1`)
	}, 3*time.Second, 10*time.Millisecond)

	body := e.scrape(t)
	assert.Contains(t, body, `nexus_chat_frames_received_total{type="progress"} 4`)
	assert.Contains(t, body, `nexus_chat_request_duration_seconds_count{outcome="answer"} 1`)
	assert.Contains(t, body, "nexus_chat_connection_open 1")

	st, err := e.c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, st.InFlight)
	assert.Empty(t, st.ActiveVoiceTaskID)
	assert.True(t, e.messages.InputEnabled())
}

func TestEndToEnd_ErrorFrame(t *testing.T) {
	e := startEndToEnd(t)

	e.c.Submit("trigger an error please")

	require.Eventually(t, func() bool { return len(e.messages.Replies()) == 1 }, 3*time.Second, 10*time.Millisecond)
	reply := e.messages.Replies()[0]
	assert.True(t, reply.Failed)
	assert.Equal(t, fakebackend.FatalDetail, reply.Text)
	assert.Empty(t, e.player.URLs())
	assert.True(t, e.messages.InputEnabled())
}
