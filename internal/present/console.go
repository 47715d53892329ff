// Package present holds presentation sinks for pipeline events.
package present

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console prints pipeline events to a terminal. Visibility mirrors an
// overlay window: every loading, result or error call makes it visible.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	visible bool
}

// NewConsole returns a visible console sink writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, visible: true}
}

func (c *Console) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

func (c *Console) Hide() {
	c.mu.Lock()
	c.visible = false
	c.mu.Unlock()
}

func (c *Console) Show() {
	c.mu.Lock()
	c.visible = true
	c.mu.Unlock()
}

// Toggle flips visibility; bound to the toggle hotkey.
func (c *Console) Toggle() {
	c.mu.Lock()
	c.visible = !c.visible
	c.mu.Unlock()
}

func (c *Console) ShowLoading() {
	c.print("⏳ Analyzing screen…")
}

func (c *Console) ShowResult(text string) {
	c.print(strings.TrimSpace(text))
}

func (c *Console) ShowError(message string) {
	c.print("❌ Error: " + message)
}

func (c *Console) print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = true
	fmt.Fprintln(c.out, s)
}
