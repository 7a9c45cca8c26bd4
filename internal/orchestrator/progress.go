package orchestrator

import (
	"fmt"
	"io"
	"sync"

	"github.com/pterm/pterm"

	"github.com/anstrom/scanfinder/internal/scanning"
)

// Progress observes a running batch. Advance is called once per completed
// probe from the collecting goroutine only.
type Progress interface {
	Start(total int, mode scanning.Mode)
	Advance(outcome scanning.Outcome)
	Finish()
}

// Discard is a Progress that ignores every event.
var Discard Progress = discard{}

type discard struct{}

func (discard) Start(int, scanning.Mode) {}
func (discard) Advance(scanning.Outcome) {}
func (discard) Finish() {}

// ConsoleProgress renders a pterm progress bar and prints a notice for each
// successful probe.
type ConsoleProgress struct {
	mu      sync.Mutex
	writer  io.Writer
	bar     *pterm.ProgressbarPrinter
	success *pterm.Style
	notice  string
}

// NewConsoleProgress creates a console progress sink writing to w.
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	return &ConsoleProgress{
		writer:  w,
		success: pterm.NewStyle(pterm.FgGreen),
	}
}

// Start implements Progress.
func (c *ConsoleProgress) Start(total int, mode scanning.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notice = mode.SuccessNotice()
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(mode.Title()).
		WithWriter(c.writer).
		WithShowElapsedTime(false).
		WithRemoveWhenDone(false).
		Start()
	if err != nil {
		c.bar = nil
		return
	}
	c.bar = bar
}

// Advance implements Progress.
func (c *ConsoleProgress) Advance(outcome scanning.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if outcome.Success {
		fmt.Fprintln(c.writer, c.success.Sprintf("✓ %s - %s", outcome.Address, c.notice))
	}
	if c.bar != nil {
		c.bar.Increment()
	}
}

// Finish implements Progress.
func (c *ConsoleProgress) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		_, _ = c.bar.Stop()
		c.bar = nil
	}
}
