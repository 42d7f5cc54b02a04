// ABOUTME: Typed events consumed by the controller loop
// ABOUTME: Every state change enters through one of these, alongside transport.Event

package session

import (
	"time"

	"github.com/2389/nexus-chat/internal/audio"
	"github.com/2389/nexus-chat/internal/transport"
)

type submitEvent struct {
	text   string
	source string
}

type listenEvent struct{}

type speechEndedEvent struct{}

type voiceDoneEvent struct {
	handle *audio.Handle
}

type muteEvent struct {
	muted bool
}

type stateQuery struct {
	reply chan State
}

type tickEvent struct{}

type deadlineEvent struct {
	request int
}

// State is a snapshot of the session.
type State struct {
	InFlight          bool
	Connection        transport.State
	ActiveVoiceTaskID string
	Muted             bool
	// Elapsed is the in-flight request's age, zero when idle.
	Elapsed time.Duration
	// Requests counts submits that were sent.
	Requests int
}
