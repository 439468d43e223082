package animation

import "sync"

// NoopEngine is always ready and discards every cue.
type NoopEngine struct{}

func (NoopEngine) Initialize(string) error    { return nil }
func (NoopEngine) PlayAnimation(string) error { return nil }
func (NoopEngine) Cleanup()                   {}

// RecordingEngine keeps the cues it accepted. It starts not ready; Initialize
// or SetReady(true) brings it up.
type RecordingEngine struct {
	mu        sync.Mutex
	ready     bool
	container string
	cues      []string
	attempts  int
}

func (e *RecordingEngine) Initialize(container string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.container = container
	e.ready = true
	return nil
}

func (e *RecordingEngine) PlayAnimation(cue string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts++
	if !e.ready {
		return ErrEngineNotReady
	}
	e.cues = append(e.cues, cue)
	return nil
}

func (e *RecordingEngine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = false
	e.container = ""
}

// SetReady flips readiness without a container.
func (e *RecordingEngine) SetReady(ready bool) {
	e.mu.Lock()
	e.ready = ready
	e.mu.Unlock()
}

// Cues returns the accepted cues in order.
func (e *RecordingEngine) Cues() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.cues...)
}

// Attempts returns how many times PlayAnimation was called.
func (e *RecordingEngine) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// Container returns the container passed to Initialize.
func (e *RecordingEngine) Container() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.container
}
