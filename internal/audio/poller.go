// ABOUTME: Long-poll state machine resolving an asynchronous voice task to a played clip
// ABOUTME: At most one poll is live; starting a new one cancels the previous handle

package audio

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/nexus-chat/internal/dedupe"
)

// Default polling parameters.
const (
	DefaultMaxAttempts = 20
	DefaultInterval    = 1500 * time.Millisecond

	playedTTL  = time.Hour
	playedSize = 256
)

// State is the terminal state of one poll.
type State int

const (
	StateDone State = iota
	StateFailed
	StateTimedOut
	StateCanceled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCanceled:
		return "canceled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome describes how a poll ended.
type Outcome struct {
	TaskID   string
	State    State
	URL      string
	Attempts int
	// Played is false for a done task that was muted or already played.
	Played bool
	Err    error
}

// Config configures a Poller.
type Config struct {
	Fetcher     Fetcher
	Player      Player
	MaxAttempts int
	Interval    time.Duration
	Muted       bool
	Logger      *slog.Logger

	// OnOutcome is called from the poll goroutine once per poll, including
	// canceled ones. It must not block.
	OnOutcome func(Outcome)
}

// Handle is the cancellable reference to one running poll.
type Handle struct {
	TaskID string

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Cancel stops the poll. No fetch result is acted on after Cancel returns.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when the poll has ended.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the poll result. Only valid after Done is closed.
func (h *Handle) Outcome() Outcome {
	return h.outcome
}

// Poller owns the single playable audio source and the single live poll.
type Poller struct {
	fetcher     Fetcher
	player      Player
	maxAttempts int
	interval    time.Duration
	onOutcome   func(Outcome)
	logger      *slog.Logger

	muted  atomic.Bool
	played *dedupe.Cache

	// mu guards current and serializes playback against Start, so a
	// superseded poll can never reach the player.
	mu      sync.Mutex
	current *Handle
}

// NewPoller creates a Poller. Player defaults to LogPlayer.
func NewPoller(cfg Config) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Player == nil {
		cfg.Player = LogPlayer{Logger: cfg.Logger}
	}
	p := &Poller{
		fetcher:     cfg.Fetcher,
		player:      cfg.Player,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.Interval,
		onOutcome:   cfg.OnOutcome,
		logger:      cfg.Logger.With("component", "audio"),
		played:      dedupe.New(playedTTL, playedSize),
	}
	p.muted.Store(cfg.Muted)
	return p
}

// Start begins polling taskID, canceling any poll already running.
func (p *Poller) Start(ctx context.Context, taskID string) *Handle {
	pollCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		TaskID: taskID,
		ctx:    pollCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if p.current != nil {
		p.logger.Debug("superseding voice poll", "old_task", p.current.TaskID, "new_task", taskID)
		p.current.Cancel()
	}
	p.current = h
	p.mu.Unlock()

	go p.run(h)
	return h
}

// Cancel stops the live poll, if any.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Cancel()
	}
}

// Active returns the task id of the live poll, or "".
func (p *Poller) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.TaskID
}

// SetMuted toggles playback. Muting stops the current clip but leaves the
// active poll running, unlike a mute that also abandons the pending task;
// the task is still resolved and reported, just not played. Unmuting never
// replays a clip that finished while muted.
func (p *Poller) SetMuted(muted bool) {
	p.muted.Store(muted)
	if muted {
		p.mu.Lock()
		p.player.Stop()
		p.mu.Unlock()
	}
}

// Muted reports whether playback is suppressed.
func (p *Poller) Muted() bool {
	return p.muted.Load()
}

func (p *Poller) run(h *Handle) {
	out := p.poll(h)
	h.outcome = out

	p.mu.Lock()
	if p.current == h {
		p.current = nil
	}
	p.mu.Unlock()

	close(h.done)

	switch out.State {
	case StateDone:
		p.logger.Info("voice task done", "task_id", out.TaskID, "attempts", out.Attempts, "played", out.Played)
	case StateFailed:
		p.logger.Error("voice generation failed", "task_id", out.TaskID)
	case StateTimedOut:
		p.logger.Error("voice polling timed out", "task_id", out.TaskID, "attempts", out.Attempts)
	case StateErrored:
		p.logger.Error("voice polling error", "task_id", out.TaskID, "error", out.Err)
	case StateCanceled:
		p.logger.Debug("voice poll canceled", "task_id", out.TaskID)
	}

	if p.onOutcome != nil {
		p.onOutcome(out)
	}
}

func (p *Poller) poll(h *Handle) Outcome {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	out := Outcome{TaskID: h.TaskID}
	for {
		select {
		case <-h.ctx.Done():
			out.State = StateCanceled
			return out
		case <-ticker.C:
		}

		out.Attempts++
		res, err := p.fetcher.Fetch(h.ctx, h.TaskID)
		if h.ctx.Err() != nil {
			out.State = StateCanceled
			return out
		}
		if err != nil {
			out.State = StateErrored
			out.Err = err
			return out
		}

		if res.HTTPStatus == http.StatusOK {
			switch {
			case res.Status == StatusDone && res.URL != "":
				out.State = StateDone
				out.URL = res.URL
				played, ok := p.play(h, res.URL)
				if !ok {
					out.State = StateCanceled
					return out
				}
				out.Played = played
				return out
			case res.Status == StatusFailed:
				out.State = StateFailed
				return out
			}
		}

		if out.Attempts >= p.maxAttempts {
			out.State = StateTimedOut
			return out
		}
	}
}

// play hands url to the player unless muted or already played. ok is false
// when h was superseded before playback could start.
func (p *Poller) play(h *Handle, url string) (played, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != h || h.ctx.Err() != nil {
		return false, false
	}
	if p.muted.Load() {
		return false, true
	}
	if p.played.CheckAndMark(h.TaskID) {
		p.logger.Debug("voice task already played", "task_id", h.TaskID)
		return false, true
	}

	// At most one audio source: stop and rewind before loading.
	p.player.Stop()
	if err := p.player.Play(url); err != nil {
		p.logger.Error("audio playback error", "task_id", h.TaskID, "error", err)
		return false, true
	}
	return true, true
}
