// ABOUTME: Clip playback backends for resolved voice tasks
// ABOUTME: Runs an external player command, or only logs the clip URL when none is configured

package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Player plays one clip at a time. Play must start playback and return
// without waiting for the clip to finish. Stop halts and rewinds whatever
// is playing; it is a no-op when nothing is.
type Player interface {
	Play(url string) error
	Stop()
}

// CommandPlayer plays clips by running an external command with the clip
// URL appended as the final argument, e.g. "mpv --no-video --speed=1.15".
type CommandPlayer struct {
	name   string
	args   []string
	logger *slog.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewCommandPlayer parses a whitespace-separated command line.
func NewCommandPlayer(commandLine string, logger *slog.Logger) (*CommandPlayer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("player command is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandPlayer{
		name:   fields[0],
		args:   fields[1:],
		logger: logger.With("component", "player"),
	}, nil
}

// Play stops any running clip and starts the command for url.
func (p *CommandPlayer) Play(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	args := append(append([]string{}, p.args...), url)
	cmd := exec.Command(p.name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting player: %w", err)
	}
	p.cmd = cmd
	p.logger.Debug("playing clip", "url", url, "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd = nil
		}
		p.mu.Unlock()
		if err != nil {
			p.logger.Debug("player exited", "error", err)
		}
	}()
	return nil
}

// Stop kills the running player, if any.
func (p *CommandPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Playing reports whether a player process is running.
func (p *CommandPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

func (p *CommandPlayer) stopLocked() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Kill()
	p.cmd = nil
}

// LogPlayer is used when no player command is configured. It records the
// clip URL in the log so it can be opened by hand.
type LogPlayer struct {
	Logger *slog.Logger
}

// Play implements Player.
func (p LogPlayer) Play(url string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("voice clip ready", "component", "player", "url", url)
	return nil
}

// Stop implements Player.
func (LogPlayer) Stop() {}
