package tui

import (
	"context"
	"errors"
	"sync"

	"DialogueWidget/internal/animation"

	tea "github.com/charmbracelet/bubbletea"
)

var errDetached = errors.New("tui: program not attached")

// Outbox forwards interpreter side effects to a running program. Messages
// sent before Attach are dropped.
type Outbox struct {
	mu      sync.Mutex
	program *tea.Program
}

// Attach starts delivering to p.
func (o *Outbox) Attach(p *tea.Program) {
	o.mu.Lock()
	o.program = p
	o.mu.Unlock()
}

func (o *Outbox) send(msg tea.Msg) error {
	o.mu.Lock()
	p := o.program
	o.mu.Unlock()
	if p == nil {
		return errDetached
	}
	// Send blocks until the program reads it; never call it from Update.
	go p.Send(msg)
	return nil
}

// Navigator shows redirect targets. A terminal has no browsing context, so
// the URL is surfaced for the visitor to open.
type Navigator struct {
	Out *Outbox
}

func (n Navigator) Open(_ context.Context, url string) error {
	return n.Out.send(navigateMsg{url: url})
}

// Engine renders animation cues as a label next to the speaker. It is ready
// once Initialize is called.
type Engine struct {
	Out *Outbox

	mu    sync.Mutex
	ready bool
}

func (e *Engine) Initialize(string) error {
	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) PlayAnimation(cue string) error {
	e.mu.Lock()
	ready := e.ready
	e.mu.Unlock()
	if !ready {
		return animation.ErrEngineNotReady
	}
	return e.Out.send(animationMsg{cue: cue})
}

func (e *Engine) Cleanup() {
	e.mu.Lock()
	e.ready = false
	e.mu.Unlock()
}
