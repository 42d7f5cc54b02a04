// ABOUTME: Append-only progress log for intermediate backend steps
// ABOUTME: Maps agent ids to display colours and status codes to icon plus Thai label

package progress

import (
	"github.com/2389/nexus-chat/internal/protocol"
)

// Placeholder texts.
const (
	IdlePlaceholder    = "ถามคำถามในช่องแชทเพื่อดูการทำงานของฉันที่นี่"
	WorkingPlaceholder = "กำลังประมวลผลความคิด..."
)

// DefaultIcon is used for statuses outside the known vocabulary.
const DefaultIcon = "🔹"

// Entry is one rendered step.
type Entry struct {
	Agent  string
	Status string
	Detail string

	Icon  string
	Label string
	// Color is a hex RGB string; empty means the default style.
	Color string
}

// Sink is the surface the log renders into.
type Sink interface {
	ShowPlaceholder(message string)
	HidePlaceholder()
	AppendStep(Entry)
}

type statusInfo struct {
	icon  string
	label string
}

var statuses = map[string]statusInfo{
	"RECEIVED":      {icon: "📥", label: "ได้รับคำสั่ง"},
	"ROUTING":       {icon: "🚦", label: "วิเคราะห์เจตนา"},
	"PROCESSING":    {icon: "⚙️", label: "ประมวลผล"},
	"DEEP_ANALYSIS": {icon: "🧠", label: "วิเคราะห์เชิงลึก"},
	"FORMATTING":    {icon: "✍️", label: "เรียบเรียงคำตอบ"},
}

var agentColors = map[string]string{
	"FENG":            "#e0b15a",
	"PLANNER":         "#7fb8d8",
	"GENERAL_HANDLER": "#b294c7",
	"FORMATTER":       "#8abda0",
	"NEWS":            "#e07a5f",
	"CODER":           "#6a9fb5",
	"COUNSELOR":       "#c88ea5",
}

// Render maps a progress record to its display entry.
func Render(p protocol.Progress) Entry {
	info, ok := statuses[p.Status]
	if !ok {
		info = statusInfo{icon: DefaultIcon, label: p.Status}
	}
	return Entry{
		Agent:  p.Agent,
		Status: p.Status,
		Detail: p.Detail,
		Icon:   info.icon,
		Label:  info.label,
		Color:  agentColors[p.Agent],
	}
}

// Log holds the steps of the current request in arrival order.
// Entries are never reordered, deduplicated or mutated once appended.
type Log struct {
	sink        Sink
	placeholder bool
	entries     []Entry
}

// NewLog creates a log showing the idle placeholder.
func NewLog(sink Sink) *Log {
	l := &Log{sink: sink}
	l.Clear("")
	return l
}

// Clear drops all entries and shows a single placeholder. An empty message
// uses IdlePlaceholder.
func (l *Log) Clear(message string) {
	if message == "" {
		message = IdlePlaceholder
	}
	l.entries = nil
	l.placeholder = true
	l.sink.ShowPlaceholder(message)
}

// AddStep appends a step, removing the placeholder on the first one.
func (l *Log) AddStep(p protocol.Progress) Entry {
	if l.placeholder {
		l.placeholder = false
		l.sink.HidePlaceholder()
	}
	e := Render(p)
	l.entries = append(l.entries, e)
	l.sink.AppendStep(e)
	return e
}

// Entries returns a copy of the current entries.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ShowingPlaceholder reports whether the placeholder is visible.
func (l *Log) ShowingPlaceholder() bool {
	return l.placeholder
}
