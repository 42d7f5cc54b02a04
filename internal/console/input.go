// ABOUTME: Reads stdin lines and routes them to the session or to slash commands
// ABOUTME: Commands cover help, quit, mute, the progress panel and a state dump

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/2389/nexus-chat/internal/session"
	"github.com/2389/nexus-chat/internal/thinking"
)

// ErrQuit is returned by Run when the user asks to leave.
var ErrQuit = errors.New("quit requested")

// Session is the part of the controller the input loop drives.
// *session.Controller implements it.
type Session interface {
	Submit(text string)
	StartListening()
	SpeechResult(text string)
	SpeechEnded()
	SetMuted(muted bool)
	Snapshot(ctx context.Context) (session.State, error)
}

// Input turns typed lines into session actions.
type Input struct {
	in      io.Reader
	session Session
	sink    *Sink
	prompts *Prompts

	// dictating is set by /listen; the next line is sent as speech.
	dictating bool
}

// NewInput creates an input loop. prompts may be nil.
func NewInput(in io.Reader, s Session, sink *Sink, prompts *Prompts) *Input {
	return &Input{in: in, session: s, sink: sink, prompts: prompts}
}

// Run reads lines until ctx is done, input ends, or /quit. It returns
// ErrQuit for /quit and nil on EOF or cancellation.
func (i *Input) Run(ctx context.Context) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(i.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- io.EOF
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case line := <-lines:
			if err := i.handleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (i *Input) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if i.dictating && !strings.HasPrefix(line, "/") {
		i.dictating = false
		if line != "" {
			i.session.SpeechResult(line)
		}
		i.session.SpeechEnded()
		return nil
	}
	if line == "" {
		return nil
	}

	if i.prompts != nil {
		if prompt, ok := i.prompts.Pick(line); ok {
			i.session.Submit(prompt)
			return nil
		}
	}

	if !strings.HasPrefix(line, "/") {
		i.session.Submit(line)
		return nil
	}

	cmd, _, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit", "/q":
		return ErrQuit
	case "/help":
		i.printHelp()
	case "/listen":
		i.dictating = true
		i.session.StartListening()
	case "/mute":
		i.session.SetMuted(true)
		i.sink.Printf("ปิดเสียงแล้ว (muted)")
	case "/unmute":
		i.session.SetMuted(false)
		i.sink.Printf("เปิดเสียงแล้ว (unmuted)")
	case "/log":
		if i.sink.ToggleLog() {
			i.sink.Printf("แสดงกระบวนการคิด (progress log on)")
		} else {
			i.sink.Printf("ซ่อนกระบวนการคิด (progress log off)")
		}
	case "/state":
		i.printState(ctx)
	default:
		i.sink.Printf("unknown command %s, try /help", cmd)
	}
	return nil
}

func (i *Input) printHelp() {
	i.sink.Printf("Commands:")
	i.sink.Printf("  /listen        Dictate: the next line is sent as speech")
	i.sink.Printf("  /mute          Stop voice playback")
	i.sink.Printf("  /unmute        Resume voice playback")
	i.sink.Printf("  /log           Show or hide the progress log")
	i.sink.Printf("  /state         Show connection and request state")
	i.sink.Printf("  /help          Show this help")
	i.sink.Printf("  /quit          Exit")
}

func (i *Input) printState(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	st, err := i.session.Snapshot(ctx)
	if err != nil {
		i.sink.Printf("state unavailable: %v", err)
		return
	}
	i.sink.Printf("connection: %s", st.Connection)
	i.sink.Printf("in flight:  %t", st.InFlight)
	if st.InFlight {
		i.sink.Printf("elapsed:    %s", thinking.Format(st.Elapsed))
	}
	i.sink.Printf("muted:      %t", st.Muted)
	if st.ActiveVoiceTaskID != "" {
		i.sink.Printf("voice task: %s", st.ActiveVoiceTaskID)
	}
	i.sink.Printf("requests:   %d", st.Requests)
}
