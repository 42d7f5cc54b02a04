// ABOUTME: Line-based terminal transcript for the chat session
// ABOUTME: Renders messages, the live thinking timer, progress steps and connection banners

package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/2389/nexus-chat/internal/progress"
	"github.com/2389/nexus-chat/internal/session"
	"github.com/2389/nexus-chat/internal/thinking"
)

// ColorMode selects how the sink decides whether to emit ANSI colour.
type ColorMode int

const (
	// ColorAuto follows fatih/color's terminal detection.
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// Options configures a Sink.
type Options struct {
	Color ColorMode
	// ShowLog starts with the progress panel visible.
	ShowLog bool
	// AssistantName labels replies.
	AssistantName string
}

const (
	defaultAssistant = "เฟิง"
	clearLine        = "\r\033[K"
	promptText       = "> "
)

type palette struct {
	user      *color.Color
	assistant *color.Color
	failed    *color.Color
	notice    *color.Color
	dim       *color.Color
	banner    *color.Color
}

func newPalette(mode ColorMode) palette {
	p := palette{
		user:      color.New(color.FgGreen, color.Bold),
		assistant: color.New(color.FgCyan, color.Bold),
		failed:    color.New(color.FgRed),
		notice:    color.New(color.FgYellow),
		dim:       color.New(color.FgHiBlack),
		banner:    color.New(color.FgBlack, color.BgYellow),
	}
	for _, c := range []*color.Color{p.user, p.assistant, p.failed, p.notice, p.dim, p.banner} {
		switch mode {
		case ColorAlways:
			c.EnableColor()
		case ColorNever:
			c.DisableColor()
		}
	}
	return p
}

// Sink writes the transcript to a terminal. It implements
// session.MessageSink and progress.Sink and is safe for concurrent use:
// the session loop writes replies while the input reader writes command
// output.
type Sink struct {
	mu   sync.Mutex
	out  io.Writer
	mode ColorMode
	pal  palette
	name string

	// thinking holds the live timer text while it occupies the last line.
	thinking string

	inputEnabled bool
	reconnecting bool
	listening    bool

	showLog     bool
	placeholder string
	steps       []progress.Entry
}

// NewSink creates a Sink writing to out.
func NewSink(out io.Writer, opts Options) *Sink {
	name := opts.AssistantName
	if name == "" {
		name = defaultAssistant
	}
	return &Sink{
		out:     out,
		mode:    opts.Color,
		pal:     newPalette(opts.Color),
		name:    name,
		showLog: opts.ShowLog,
	}
}

// UserMessage echoes the submitted text.
func (s *Sink) UserMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.println(s.pal.user.Sprint("คุณ") + " › " + text)
}

// ShowThinking redraws the timer line in place.
func (s *Sink) ShowThinking(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thinking = s.pal.dim.Sprintf("⏳ %s กำลังคิด... %s", s.name, thinking.Format(elapsed))
	fmt.Fprint(s.out, clearLine+s.thinking)
}

// Reply replaces the timer line with the assistant message.
func (s *Sink) Reply(r session.Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropThinking()

	header := s.pal.assistant.Sprint(s.name)
	var meta []string
	if r.Agent != "" {
		meta = append(meta, r.Agent)
	}
	if r.Elapsed > 0 {
		meta = append(meta, thinking.Format(r.Elapsed))
	}
	if len(meta) > 0 {
		header += " " + s.pal.dim.Sprint("("+strings.Join(meta, " · ")+")")
	}
	fmt.Fprintln(s.out, header)

	body := strings.TrimRight(r.Text, "\n")
	if r.Failed {
		body = s.pal.failed.Sprint(body)
	}
	fmt.Fprintln(s.out, body)

	if r.Image != nil && r.Image.URL != "" {
		s.writeImage(r)
	}
	fmt.Fprintln(s.out)
}

func (s *Sink) writeImage(r session.Reply) {
	img := r.Image
	label := img.Description
	if label == "" {
		label = "image"
	}
	fmt.Fprintf(s.out, "🖼  %s: %s\n", label, img.URL)
	if img.Photographer != "" {
		credit := "Photo by " + img.Photographer + " on Unsplash"
		if img.ProfileURL != "" {
			credit += " (" + img.ProfileURL + ")"
		}
		fmt.Fprintln(s.out, s.pal.dim.Sprint(credit))
	}
}

// Notice prints a transient system line.
func (s *Sink) Notice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.println(s.pal.notice.Sprint("! " + text))
}

// SetInputEnabled shows the prompt when input opens up.
func (s *Sink) SetInputEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled && !s.inputEnabled && s.thinking == "" {
		fmt.Fprint(s.out, promptText)
	}
	s.inputEnabled = enabled
}

// InputEnabled reports the last state set by the session.
func (s *Sink) InputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputEnabled
}

// SetReconnecting shows the banner once per outage.
func (s *Sink) SetReconnecting(reconnecting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reconnecting == s.reconnecting {
		return
	}
	s.reconnecting = reconnecting
	if reconnecting {
		s.println(s.pal.banner.Sprint(" กำลังเชื่อมต่อใหม่... (reconnecting) "))
	} else {
		s.println(s.pal.dim.Sprint("เชื่อมต่อแล้ว (connected)"))
	}
}

// SetListening shows the microphone state.
func (s *Sink) SetListening(listening bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if listening == s.listening {
		return
	}
	s.listening = listening
	if listening {
		s.println(s.pal.notice.Sprint("🎤 กำลังฟัง... (listening)"))
	}
}

// ShowPlaceholder implements progress.Sink.
func (s *Sink) ShowPlaceholder(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeholder = message
	s.steps = nil
	if s.showLog {
		s.println(s.pal.dim.Sprint("  " + message))
	}
}

// HidePlaceholder implements progress.Sink.
func (s *Sink) HidePlaceholder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeholder = ""
}

// AppendStep implements progress.Sink. Steps are kept while the panel is
// hidden so toggling it on replays the current request.
func (s *Sink) AppendStep(e progress.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, e)
	if s.showLog {
		s.println(s.formatStep(e))
	}
}

// ToggleLog flips progress panel visibility and returns the new state.
func (s *Sink) ToggleLog() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showLog = !s.showLog
	if s.showLog {
		if s.placeholder != "" {
			s.println(s.pal.dim.Sprint("  " + s.placeholder))
		}
		for _, e := range s.steps {
			s.println(s.formatStep(e))
		}
	}
	return s.showLog
}

// Printf writes a command response line.
func (s *Sink) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.println(fmt.Sprintf(format, args...))
}

func (s *Sink) formatStep(e progress.Entry) string {
	agent := "[" + e.Agent + "]"
	if c := s.agentColor(e.Color); c != nil {
		agent = c.Sprint(agent)
	}
	line := "  " + e.Icon + " " + e.Label + " " + agent
	if e.Detail != "" {
		line += " " + s.pal.dim.Sprint(e.Detail)
	}
	return line
}

// agentColor parses a "#rrggbb" hint into a truecolor style.
func (s *Sink) agentColor(hex string) *color.Color {
	if len(hex) != 7 || hex[0] != '#' {
		return nil
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return nil
	}
	c := color.RGB(int(v>>16&0xff), int(v>>8&0xff), int(v&0xff))
	switch s.mode {
	case ColorAlways:
		c.EnableColor()
	case ColorNever:
		c.DisableColor()
	}
	return c
}

// println writes a full line, keeping the live timer at the bottom.
// Callers hold mu.
func (s *Sink) println(line string) {
	if s.thinking != "" {
		fmt.Fprint(s.out, clearLine)
	}
	fmt.Fprintln(s.out, line)
	if s.thinking != "" {
		fmt.Fprint(s.out, s.thinking)
	}
}

func (s *Sink) dropThinking() {
	if s.thinking != "" {
		fmt.Fprint(s.out, clearLine)
		s.thinking = ""
	}
}
