// ABOUTME: Suggested showcase prompts shown before the first question
// ABOUTME: Picks three at random and hides them for good once a request starts

package console

import (
	"math/rand"
	"strconv"
	"sync"
)

// ShowcasePrompts are the example questions offered at start.
var ShowcasePrompts = []string{
	"วิเคราะห์ข้อดีข้อเสียของ Stoicism กับ Epicureanism",
	"ช่วยวางแผนการเรียนรู้เรื่อง Machine Learning สำหรับผู้เริ่มต้นหน่อย",
	"สรุปข่าวเทคโนโลยีล่าสุดทั่วโลก",
	"แนะนำหนังสือเกี่ยวกับประวัติศาสตร์ที่น่าสนใจหน่อย",
	"มีหนังสืออะไรบ้างในคลังความรู้ของคุณ",
	"เขียนโค้ด Python สำหรับหาค่าเฉลี่ยของ list",
	"หารูปภูเขาสวยๆ ตอนพระอาทิตย์ขึ้น",
	"เปิดโปรแกรมเครื่องคิดเลข",
	"The Art of War คืออะไร",
	"วันนี้รู้สึกเครียดมากเลย ทำยังไงดี",
	"คุณคิดว่า AI จะครองโลกในอนาคตไหม",
}

const promptCount = 3

// Prompts implements session.PromptsPanel. While visible, typing a
// prompt's number submits it.
type Prompts struct {
	mu      sync.Mutex
	sink    *Sink
	shown   []string
	hidden  bool
	shuffle func(n int, swap func(i, j int))
}

// NewPrompts creates a panel drawing from ShowcasePrompts.
func NewPrompts(sink *Sink) *Prompts {
	return &Prompts{sink: sink, shuffle: rand.Shuffle}
}

// Show prints a fresh random selection unless the panel was hidden.
func (p *Prompts) Show() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hidden {
		return
	}

	all := append([]string(nil), ShowcasePrompts...)
	p.shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	p.shown = all[:min(promptCount, len(all))]

	p.sink.Printf("ลองถามดูสิ (พิมพ์หมายเลขเพื่อเลือก):")
	for i, prompt := range p.shown {
		p.sink.Printf("  %d. %s", i+1, prompt)
	}
}

// HidePrompts hides the panel for the rest of the session.
func (p *Prompts) HidePrompts() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden = true
	p.shown = nil
}

// Pick maps a typed number to its prompt while the panel is visible.
func (p *Prompts) Pick(input string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hidden {
		return "", false
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(p.shown) {
		return "", false
	}
	return p.shown[n-1], true
}

// Visible reports whether prompts are still on offer.
func (p *Prompts) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.hidden && len(p.shown) > 0
}
