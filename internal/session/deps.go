// ABOUTME: Collaborator interfaces the session controller is composed from
// ABOUTME: Rendering sinks, transport, voice poller, markdown renderer, prompts panel and metrics

package session

import (
	"context"
	"time"

	"github.com/2389/nexus-chat/internal/audio"
	"github.com/2389/nexus-chat/internal/protocol"
	"github.com/2389/nexus-chat/internal/transport"
)

// Reply is one assistant message, shown in place of the thinking placeholder.
type Reply struct {
	// Text is renderer output for answers and verbatim text for errors.
	Text  string
	Image *protocol.ImageRef
	Agent string

	// Elapsed is the time the request was in flight; zero for messages
	// not tied to a request (the greeting).
	Elapsed time.Duration
	Failed  bool
}

// MessageSink is the chat transcript surface.
type MessageSink interface {
	UserMessage(text string)
	// ShowThinking shows or refreshes the placeholder for the in-flight request.
	ShowThinking(elapsed time.Duration)
	// Reply replaces the thinking placeholder, or appends when none is shown.
	Reply(Reply)
	// Notice shows a transient system line that is not part of the dialogue.
	Notice(text string)
	SetInputEnabled(enabled bool)
	SetReconnecting(reconnecting bool)
	SetListening(listening bool)
}

// Transport is the connection the controller sends on and listens to.
// *transport.Client implements it.
type Transport interface {
	Events() <-chan transport.Event
	Send(text string) error
}

// Renderer converts answer markdown to the sink's display format.
type Renderer interface {
	Render(markdown string) (string, error)
}

// PromptsPanel is the optional suggested-prompts surface.
type PromptsPanel interface {
	HidePrompts()
}

// VoicePoller resolves voice task ids. *audio.Poller implements it.
type VoicePoller interface {
	Start(ctx context.Context, taskID string) *audio.Handle
	SetMuted(muted bool)
	Muted() bool
}

// Metrics receives session observations. *metrics.Collector implements it.
type Metrics interface {
	ConnectionState(s transport.State)
	FrameReceived(t protocol.Type)
	RequestFinished(outcome string, elapsed time.Duration)
	VoiceOutcome(s audio.State)
}

// Request outcomes reported to Metrics.
const (
	OutcomeAnswer      = "answer"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeInterrupted = "interrupted"
	OutcomeFailure     = "failure"
)

type noPrompts struct{}

func (noPrompts) HidePrompts() {}

type noMetrics struct{}

func (noMetrics) ConnectionState(transport.State)       {}
func (noMetrics) FrameReceived(protocol.Type)           {}
func (noMetrics) RequestFinished(string, time.Duration) {}
func (noMetrics) VoiceOutcome(audio.State)              {}

type passthrough struct{}

func (passthrough) Render(markdown string) (string, error) { return markdown, nil }
