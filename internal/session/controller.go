// ABOUTME: Session controller owning the in-flight gate and all request state
// ABOUTME: A single goroutine consumes transport, user, timer and voice events in order

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/nexus-chat/internal/audio"
	"github.com/2389/nexus-chat/internal/progress"
	"github.com/2389/nexus-chat/internal/protocol"
	"github.com/2389/nexus-chat/internal/thinking"
	"github.com/2389/nexus-chat/internal/transport"
)

const inboxSize = 32

var (
	// ErrStopped is returned by queries made after Run has returned.
	ErrStopped = errors.New("session stopped")

	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("missing session dependency")
)

// Deps are the collaborators a Controller is composed from. Transport,
// Messages and Progress are required.
type Deps struct {
	Transport Transport
	Messages  MessageSink
	Progress  progress.Sink
	Renderer  Renderer
	Prompts   PromptsPanel
	Voice     VoicePoller
	Metrics   Metrics
	Logger    *slog.Logger
}

// Options tune controller behaviour.
type Options struct {
	// ThinkingTick is the placeholder timer refresh interval.
	ThinkingTick time.Duration
	// RequestTimeout, when positive, ends a request that has not received a
	// terminal frame with a synthesized error.
	RequestTimeout time.Duration
	// Greeting is shown once when Run starts; empty shows nothing.
	Greeting string
	// Now overrides the clock used for elapsed time.
	Now func() time.Time
}

// Controller composes the connection, progress log, thinking indicator and
// voice poller into one conversation. All fields below are owned by the Run
// goroutine.
type Controller struct {
	transport Transport
	messages  MessageSink
	renderer  Renderer
	prompts   PromptsPanel
	voice     VoicePoller
	metrics   Metrics
	logger    *slog.Logger
	opts      Options

	progress  *progress.Log
	indicator *thinking.Indicator

	inbox chan any
	done  chan struct{}
	ctx   context.Context

	conn         transport.State
	inFlight     bool
	request      int
	inputEnabled bool
	reconnecting bool
	voiceHandle  *audio.Handle

	deadline    *time.Timer
	deadlineReq int
}

// New builds a Controller. Absent optional collaborators are replaced with
// no-op implementations here, once.
func New(deps Deps, opts Options) (*Controller, error) {
	switch {
	case deps.Transport == nil:
		return nil, fmt.Errorf("%w: transport", ErrMissingDependency)
	case deps.Messages == nil:
		return nil, fmt.Errorf("%w: message sink", ErrMissingDependency)
	case deps.Progress == nil:
		return nil, fmt.Errorf("%w: progress sink", ErrMissingDependency)
	}
	if deps.Renderer == nil {
		deps.Renderer = passthrough{}
	}
	if deps.Prompts == nil {
		deps.Prompts = noPrompts{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Controller{
		transport: deps.Transport,
		messages:  deps.Messages,
		renderer:  deps.Renderer,
		prompts:   deps.Prompts,
		voice:     deps.Voice,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("component", "session"),
		opts:      opts,
		progress:  progress.NewLog(deps.Progress),
		indicator: thinking.New(opts.ThinkingTick, opts.Now),
		inbox:     make(chan any, inboxSize),
		done:      make(chan struct{}),
		ctx:       context.Background(),
		conn:      transport.StateConnecting,
	}, nil
}

// Run consumes events until ctx is canceled. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	defer c.shutdown()

	c.start()

	events := c.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handle(ev)
		case ev := <-c.inbox:
			c.handle(ev)
		case <-c.indicator.C():
			c.handle(tickEvent{})
		case <-c.deadlineC():
			c.handle(deadlineEvent{request: c.deadlineReq})
		}
	}
}

// Submit queues typed user input.
func (c *Controller) Submit(text string) {
	c.post(submitEvent{text: text, source: "keyboard"})
}

// StartListening shows the listening indicator unless a request is in flight.
func (c *Controller) StartListening() {
	c.post(listenEvent{})
}

// SpeechResult feeds recognized speech into the same path as typed input.
func (c *Controller) SpeechResult(text string) {
	c.post(submitEvent{text: text, source: "speech"})
}

// SpeechEnded clears the listening indicator after a result or an error.
func (c *Controller) SpeechEnded() {
	c.post(speechEndedEvent{})
}

// SetMuted toggles voice clip playback.
func (c *Controller) SetMuted(muted bool) {
	c.post(muteEvent{muted: muted})
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot(ctx context.Context) (State, error) {
	q := stateQuery{reply: make(chan State, 1)}
	if !c.post(q) {
		return State{}, ErrStopped
	}
	select {
	case s := <-q.reply:
		return s, nil
	case <-c.done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) post(ev any) bool {
	select {
	case c.inbox <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) start() {
	c.inputEnabled = c.inputAllowed()
	c.messages.SetInputEnabled(c.inputEnabled)
	if c.opts.Greeting != "" {
		text, err := c.renderer.Render(c.opts.Greeting)
		if err != nil {
			text = c.opts.Greeting
		}
		c.messages.Reply(Reply{Text: text})
	}
}

func (c *Controller) shutdown() {
	c.indicator.Stop()
	c.stopDeadline()
}

// handle is the single dispatch point for every event.
func (c *Controller) handle(ev any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while handling event", "event", fmt.Sprintf("%T", ev), "panic", r)
		}
	}()

	switch ev := ev.(type) {
	case transport.Event:
		c.handleTransport(ev)
	case submitEvent:
		c.submit(ev.text, ev.source)
	case listenEvent:
		if !c.inFlight {
			c.messages.SetListening(true)
		}
	case speechEndedEvent:
		c.messages.SetListening(false)
	case tickEvent:
		if c.inFlight {
			c.messages.ShowThinking(c.indicator.Elapsed())
		}
	case deadlineEvent:
		c.handleDeadline(ev)
	case voiceDoneEvent:
		c.handleVoiceDone(ev)
	case muteEvent:
		if c.voice != nil {
			c.voice.SetMuted(ev.muted)
		}
		c.logger.Info("voice playback toggled", "muted", ev.muted)
	case stateQuery:
		ev.reply <- c.state()
	default:
		c.logger.Warn("unhandled session event", "event", fmt.Sprintf("%T", ev))
	}
}

func (c *Controller) handleTransport(ev transport.Event) {
	switch ev.Kind {
	case transport.EventOpened:
		c.conn = transport.StateOpen
		c.metrics.ConnectionState(c.conn)
		if c.reconnecting {
			c.reconnecting = false
			c.messages.SetReconnecting(false)
		}
		c.logger.Info("connected")
		c.syncInput()

	case transport.EventClosed:
		c.conn = transport.StateClosed
		c.metrics.ConnectionState(c.conn)
		if c.inFlight {
			c.logger.Warn("connection lost with request in flight", "request", c.request, "error", ev.Err)
			c.complete(Reply{Text: MsgInterrupted, Failed: true}, OutcomeInterrupted)
		}
		if !c.reconnecting {
			c.reconnecting = true
			c.messages.SetReconnecting(true)
		}
		c.syncInput()

	case transport.EventFrame:
		c.metrics.FrameReceived(ev.Frame.Type)
		c.handleFrame(ev.Frame)
	}
}

func (c *Controller) handleFrame(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeProgress:
		// Progress never touches the gate.
		if f.Progress != nil {
			c.progress.AddStep(*f.Progress)
		}
	case protocol.TypeFinalResponse, protocol.TypeError:
		if !c.inFlight {
			c.logger.Warn("ignoring terminal frame with no request in flight", "type", f.Type)
			return
		}
		c.finish(f)
	default:
		c.logger.Debug("ignoring frame", "type", f.Type)
	}
}

func (c *Controller) submit(text, source string) {
	text = strings.TrimSpace(text)
	if c.inFlight || text == "" {
		c.logger.Debug("submit ignored", "in_flight", c.inFlight, "empty", text == "")
		return
	}
	if c.conn != transport.StateOpen {
		c.messages.Notice(MsgUnavailable)
		return
	}

	// The loop may not have seen EventClosed yet; the transport knows first.
	err := c.transport.Send(text)
	if errors.Is(err, transport.ErrNotConnected) {
		c.logger.Warn("connection dropped before send", "source", source)
		c.messages.Notice(MsgUnavailable)
		return
	}

	c.request++
	c.logger.Info("sending request", "request", c.request, "source", source, "length", len(text))

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while starting request", "request", c.request, "panic", r)
			if c.inFlight {
				c.complete(Reply{Text: MsgGenericFailure, Failed: true}, OutcomeFailure)
			}
		}
	}()

	c.messages.UserMessage(text)
	c.inFlight = true
	c.syncInput()
	c.indicator.Start()
	c.messages.ShowThinking(0)
	c.progress.Clear(progress.WorkingPlaceholder)
	c.prompts.HidePrompts()
	c.armDeadline()

	if err != nil {
		c.logger.Error("send failed", "request", c.request, "error", err)
		c.complete(Reply{Text: MsgGenericFailure, Failed: true}, OutcomeFailure)
	}
}

// finish renders a terminal frame as the live answer.
func (c *Controller) finish(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeError:
		detail := ""
		if f.Error != nil {
			detail = f.Error.Detail
		}
		c.logger.Warn("request failed", "request", c.request, "detail", detail)
		c.complete(Reply{Text: detail, Failed: true}, OutcomeError)

	case protocol.TypeFinalResponse:
		final := f.Final
		if final == nil {
			final = &protocol.FinalResponse{}
		}
		answer := final.Answer
		if answer == "" {
			answer = MsgEmptyAnswer
		}
		if final.Failed {
			c.logger.Warn("backend reported a failed answer", "request", c.request, "agent", final.AgentUsed)
		}

		text, err := c.renderer.Render(answer)
		if err != nil {
			c.logger.Error("rendering answer", "request", c.request, "error", err)
			c.complete(Reply{Text: MsgGenericFailure, Failed: true}, OutcomeFailure)
			return
		}
		c.complete(Reply{Text: text, Image: final.Image, Agent: final.AgentUsed}, OutcomeAnswer)

		if final.VoiceTaskID != "" {
			c.startVoice(final.VoiceTaskID)
		}
	}
}

// complete leaves THINKING and shows reply. The gate is cleared on every
// path, including a panicking sink.
func (c *Controller) complete(reply Reply, outcome string) {
	elapsed, _ := c.indicator.Stop()
	reply.Elapsed = elapsed

	defer func() {
		c.inFlight = false
		c.stopDeadline()
		c.metrics.RequestFinished(outcome, elapsed)
		if r := recover(); r != nil {
			c.logger.Error("panic while showing reply", "request", c.request, "panic", r)
			c.safeReply(Reply{Text: MsgGenericFailure, Elapsed: elapsed, Failed: true})
		}
		c.syncInput()
	}()

	c.logger.Info("request finished", "request", c.request, "outcome", outcome, "elapsed", thinking.Format(elapsed))
	c.messages.Reply(reply)
}

func (c *Controller) safeReply(reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while showing failure message", "panic", r)
		}
	}()
	c.messages.Reply(reply)
}

func (c *Controller) startVoice(taskID string) {
	if c.voice == nil {
		c.logger.Debug("voice disabled, ignoring task", "task_id", taskID)
		return
	}
	h := c.voice.Start(c.ctx, taskID)
	c.voiceHandle = h
	go func() {
		<-h.Done()
		c.post(voiceDoneEvent{handle: h})
	}()
}

func (c *Controller) handleVoiceDone(ev voiceDoneEvent) {
	out := ev.handle.Outcome()
	c.metrics.VoiceOutcome(out.State)
	if c.voiceHandle == ev.handle {
		c.voiceHandle = nil
	}
}

func (c *Controller) armDeadline() {
	c.stopDeadline()
	if c.opts.RequestTimeout <= 0 {
		return
	}
	c.deadline = time.NewTimer(c.opts.RequestTimeout)
	c.deadlineReq = c.request
}

func (c *Controller) stopDeadline() {
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
}

func (c *Controller) deadlineC() <-chan time.Time {
	if c.deadline == nil {
		return nil
	}
	return c.deadline.C
}

func (c *Controller) handleDeadline(ev deadlineEvent) {
	if !c.inFlight || ev.request != c.request {
		return
	}
	c.deadline = nil
	c.logger.Warn("request timed out", "request", c.request, "timeout", c.opts.RequestTimeout)
	c.complete(Reply{Text: MsgTimeout, Failed: true}, OutcomeTimeout)
}

func (c *Controller) inputAllowed() bool {
	return !c.inFlight && c.conn == transport.StateOpen
}

func (c *Controller) syncInput() {
	allowed := c.inputAllowed()
	if allowed == c.inputEnabled {
		return
	}
	c.inputEnabled = allowed
	c.messages.SetInputEnabled(allowed)
}

func (c *Controller) state() State {
	s := State{
		InFlight:   c.inFlight,
		Connection: c.conn,
		Elapsed:    c.indicator.Elapsed(),
		Requests:   c.request,
	}
	if c.voiceHandle != nil {
		s.ActiveVoiceTaskID = c.voiceHandle.TaskID
	}
	if c.voice != nil {
		s.Muted = c.voice.Muted()
	}
	return s
}
