package server

import (
	"context"
	"sync"

	"DialogueWidget/internal/animation"
)

// remoteEngine stands in for the animation engine running in the visitor's
// browser. The client reports readiness with engine:ready and loss with
// engine:lost; accepted cues are forwarded as animation messages.
type remoteEngine struct {
	send func(outboundMessage) error

	mu        sync.Mutex
	ready     bool
	container string
}

func (e *remoteEngine) Initialize(container string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = true
	e.container = container
	return nil
}

func (e *remoteEngine) PlayAnimation(cue string) error {
	e.mu.Lock()
	ready := e.ready
	e.mu.Unlock()
	if !ready {
		return animation.ErrEngineNotReady
	}
	return e.send(outboundMessage{Type: "animation", Payload: animationDTO{Cue: cue}})
}

func (e *remoteEngine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = false
	e.container = ""
}

// remoteNavigator asks the client to open a URL in a new tab that cannot
// reach back into the widget.
type remoteNavigator struct {
	send func(outboundMessage) error
}

func (n remoteNavigator) Open(_ context.Context, url string) error {
	return n.send(outboundMessage{Type: "navigate", Payload: navigateDTO{
		URL:    url,
		Target: "_blank",
		Rel:    "noopener noreferrer",
	}})
}
