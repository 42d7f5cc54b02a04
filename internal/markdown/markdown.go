// ABOUTME: Markdown renderers for assistant answers built on goldmark
// ABOUTME: HTML output for web surfaces, ANSI-styled and plain text output for terminals

package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Format names accepted by New.
const (
	FormatTerminal = "terminal"
	FormatHTML     = "html"
	FormatPlain    = "plain"
)

// Renderer converts markdown source to a display string.
type Renderer interface {
	Render(src string) (string, error)
}

// New returns the renderer for a format name.
func New(format string) (Renderer, error) {
	switch format {
	case FormatTerminal, "":
		return NewTerminal(false), nil
	case FormatHTML:
		return NewHTML(), nil
	case FormatPlain:
		return NewPlain(), nil
	default:
		return nil, fmt.Errorf("unknown render format %q", format)
	}
}

func newGoldmark() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// HTML renders markdown to an HTML fragment.
type HTML struct {
	md goldmark.Markdown
}

// NewHTML creates an HTML renderer with GitHub-flavoured extensions.
func NewHTML() *HTML {
	return &HTML{md: newGoldmark()}
}

// Render implements Renderer.
func (h *HTML) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

// styles holds the decorations applied to inline and block elements.
// Every field is the identity function for plain output.
type styles struct {
	strong  func(a ...interface{}) string
	em      func(a ...interface{}) string
	code    func(a ...interface{}) string
	heading func(a ...interface{}) string
	link    func(a ...interface{}) string
	quote   func(a ...interface{}) string
}

func plainStyles() styles {
	id := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return styles{strong: id, em: id, code: id, heading: id, link: id, quote: id}
}

func terminalStyles(force bool) styles {
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if force {
			c.EnableColor()
		}
		return c.SprintFunc()
	}
	return styles{
		strong:  mk(color.Bold),
		em:      mk(color.Italic),
		code:    mk(color.FgYellow),
		heading: mk(color.FgCyan, color.Bold),
		link:    mk(color.FgBlue, color.Underline),
		quote:   mk(color.FgHiBlack),
	}
}

// Text renders markdown to terminal text by walking the goldmark AST.
type Text struct {
	md    goldmark.Markdown
	style styles
}

// NewTerminal creates a renderer that styles output with ANSI colours.
// Colour follows fatih/color's terminal detection unless force is set.
func NewTerminal(force bool) *Text {
	return &Text{md: newGoldmark(), style: terminalStyles(force)}
}

// NewPlain creates a renderer that strips all markup.
func NewPlain() *Text {
	return &Text{md: newGoldmark(), style: plainStyles()}
}

// Render implements Renderer.
func (t *Text) Render(src string) (string, error) {
	source := []byte(src)
	doc := t.md.Parser().Parse(text.NewReader(source))

	w := &textWriter{src: source, style: t.style}
	if err := w.blocks(doc, ""); err != nil {
		return "", err
	}
	return strings.TrimRight(w.out.String(), "\n"), nil
}

// Strip returns src with markdown removed, for logs and speech.
func Strip(src string) string {
	out, err := NewPlain().Render(src)
	if err != nil {
		return src
	}
	return out
}

type textWriter struct {
	src   []byte
	style styles
	out   strings.Builder
}

// blocks writes the block children of n, each line prefixed by indent.
func (w *textWriter) blocks(n ast.Node, indent string) error {
	first := true
	tight := inTightList(n)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if !first && !tight {
			w.out.WriteString("\n")
		}
		first = false
		if err := w.block(c, indent); err != nil {
			return err
		}
	}
	return nil
}

func inTightList(n ast.Node) bool {
	if _, ok := n.(*ast.ListItem); ok {
		if l, ok := n.Parent().(*ast.List); ok {
			return l.IsTight
		}
	}
	return false
}

func (w *textWriter) block(n ast.Node, indent string) error {
	switch n := n.(type) {
	case *ast.Heading:
		w.line(indent, w.style.heading(w.inline(n)))
	case *ast.Paragraph, *ast.TextBlock:
		for _, l := range strings.Split(w.inline(n), "\n") {
			w.line(indent, l)
		}
	case *ast.List:
		num := n.Start
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "• "
			if n.IsOrdered() {
				marker = fmt.Sprintf("%d. ", num)
				num++
			}
			if item != n.FirstChild() && !n.IsTight {
				w.out.WriteString("\n")
			}
			if err := w.listItem(item, indent, marker); err != nil {
				return err
			}
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			l := strings.TrimRight(string(seg.Value(w.src)), "\n")
			w.line(indent+"    ", w.style.code(l))
		}
	case *ast.Blockquote:
		sub := &textWriter{src: w.src, style: w.style}
		if err := sub.blocks(n, ""); err != nil {
			return err
		}
		for _, l := range strings.Split(strings.TrimRight(sub.out.String(), "\n"), "\n") {
			w.line(indent, w.style.quote("│ "+l))
		}
	case *ast.ThematicBreak:
		w.line(indent, strings.Repeat("─", 20))
	case *east.Table:
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, w.inline(cell))
			}
			l := strings.Join(cells, " | ")
			if _, header := row.(*east.TableHeader); header {
				l = w.style.strong(l)
			}
			w.line(indent, l)
		}
	case *ast.HTMLBlock:
		// Raw HTML has no terminal rendering.
	default:
		return w.blocks(n, indent)
	}
	return nil
}

func (w *textWriter) listItem(item ast.Node, indent, marker string) error {
	sub := &textWriter{src: w.src, style: w.style}
	if err := sub.blocks(item, ""); err != nil {
		return err
	}
	pad := strings.Repeat(" ", len([]rune(marker)))
	for i, l := range strings.Split(strings.TrimRight(sub.out.String(), "\n"), "\n") {
		if i == 0 {
			w.line(indent, marker+l)
			continue
		}
		w.line(indent, pad+l)
	}
	return nil
}

func (w *textWriter) line(indent, s string) {
	w.out.WriteString(indent)
	w.out.WriteString(s)
	w.out.WriteString("\n")
}

// inline renders the inline children of n to a single string.
func (w *textWriter) inline(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.inlineNode(&b, c)
	}
	return b.String()
}

func (w *textWriter) inlineNode(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(w.src))
		if n.HardLineBreak() || n.SoftLineBreak() {
			b.WriteString("\n")
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.CodeSpan:
		b.WriteString(w.style.code(w.inline(n)))
	case *ast.Emphasis:
		if n.Level >= 2 {
			b.WriteString(w.style.strong(w.inline(n)))
		} else {
			b.WriteString(w.style.em(w.inline(n)))
		}
	case *ast.Link:
		label := w.inline(n)
		dest := string(n.Destination)
		if label == "" || label == dest {
			b.WriteString(w.style.link(dest))
		} else {
			b.WriteString(label + " (" + w.style.link(dest) + ")")
		}
	case *ast.AutoLink:
		b.WriteString(w.style.link(string(n.URL(w.src))))
	case *ast.Image:
		alt := w.inline(n)
		if alt == "" {
			alt = "image"
		}
		b.WriteString("[" + alt + "]")
	case *east.TaskCheckBox:
		if n.IsChecked {
			b.WriteString("[x] ")
		} else {
			b.WriteString("[ ] ")
		}
	case *ast.RawHTML:
		// Dropped.
	default:
		b.WriteString(w.inline(n))
	}
}
