// ABOUTME: Tests for nexus-chat wiring helpers
// ABOUTME: Covers endpoint building, token expiry checks and renderer selection

package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/nexus-chat/internal/audio"
	"github.com/2389/nexus-chat/internal/auth"
	"github.com/2389/nexus-chat/internal/markdown"
)

func TestSessionURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8000/ws/abc", sessionURL("ws://localhost:8000", "abc"))
	assert.Equal(t, "wss://h/ws/a%20b", sessionURL("wss://h/", "a b"))
}

func TestCheckToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := auth.NewSigner([]byte("secret"))

	fresh, err := signer.Issue("u", time.Hour)
	require.NoError(t, err)
	stale, err := signer.Issue("u", -time.Hour)
	require.NoError(t, err)

	assert.NoError(t, checkToken("", logger))
	assert.NoError(t, checkToken("opaque-key", logger))
	assert.NoError(t, checkToken(fresh, logger))
	assert.ErrorContains(t, checkToken(stale, logger), "expired")
}

func TestNewRenderer(t *testing.T) {
	r, err := newRenderer("terminal", true)
	require.NoError(t, err)
	assert.IsType(t, &markdown.Text{}, r)

	r, err = newRenderer("html", true)
	require.NoError(t, err)
	assert.IsType(t, &markdown.HTML{}, r)

	_, err = newRenderer("pdf", false)
	assert.Error(t, err)
}

func TestNewPlayer(t *testing.T) {
	p, err := newPlayer("", nil)
	require.NoError(t, err)
	assert.IsType(t, audio.LogPlayer{}, p)
}
