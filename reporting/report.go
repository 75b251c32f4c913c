// Package reporting collects the lifecycle events of a run and renders a
// human-readable summary.
package reporting

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dotnet-test-explorer/dte/types"
)

// Summary aggregates terminal test states for one run
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Errored int
	Skipped int
}

// Collector is an Emitter that records every event in fire order, while
// forwarding to an optional downstream emitter. It doubles as the event
// sink in tests and as the source of the end-of-run summary table.
type Collector struct {
	mu     sync.Mutex
	events []types.Event
	next   types.Emitter
}

// NewCollector creates a collector forwarding to next, which may be nil
func NewCollector(next types.Emitter) *Collector {
	return &Collector{next: next}
}

// Emit records the event and forwards it downstream
func (c *Collector) Emit(ev types.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()

	if c.next != nil {
		c.next.Emit(ev)
	}
}

// Events returns a copy of the recorded events in fire order
func (c *Collector) Events() []types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]types.Event, len(c.events))
	copy(cp, c.events)
	return cp
}

// Reset discards recorded events, typically between runs
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// Summary tallies the recorded terminal test events
func (c *Collector) Summary() Summary {
	var s Summary
	for _, ev := range c.Events() {
		te, ok := ev.(types.TestEvent)
		if !ok || !te.State.IsTerminal() {
			continue
		}
		s.Total++
		switch te.State {
		case types.TestStatePassed:
			s.Passed++
		case types.TestStateFailed:
			s.Failed++
		case types.TestStateErrored:
			s.Errored++
		case types.TestStateSkipped:
			s.Skipped++
		}
	}
	return s
}

// RenderTable renders the terminal test results as a table, one row per
// test in fire order, with a totals footer.
func (c *Collector) RenderTable() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Test", "State", "Message"})

	for _, ev := range c.Events() {
		te, ok := ev.(types.TestEvent)
		if !ok || !te.State.IsTerminal() {
			continue
		}
		t.AppendRow(table.Row{te.TestID, colorizeState(te.State), firstLine(te.Message)})
	}

	s := c.Summary()
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d tests", s.Total),
		fmt.Sprintf("%d passed, %d failed, %d errored, %d skipped", s.Passed, s.Failed, s.Errored, s.Skipped),
		"",
	})
	return t.Render()
}

func colorizeState(state types.TestState) string {
	switch state {
	case types.TestStatePassed:
		return text.FgGreen.Sprint(state)
	case types.TestStateFailed, types.TestStateErrored:
		return text.FgRed.Sprint(state)
	case types.TestStateSkipped:
		return text.FgYellow.Sprint(state)
	}
	return string(state)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
