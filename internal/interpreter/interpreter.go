// Package interpreter runs one conversation: it loads a scenario, keeps the
// cursor, applies choices and drives the animation bridge.
//
// States are Loading, Ready and Error. The scenario is immutable once loaded;
// the cursor is the only mutable piece and is changed only by a committed
// choice, Restart, or a successful Load.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DialogueWidget/internal/animation"
	"DialogueWidget/internal/dialogue"
	"DialogueWidget/internal/history"
	"DialogueWidget/internal/loader"

	"go.uber.org/zap"
)

// Phase is the interpreter's coarse state.
type Phase string

const (
	PhaseIdle    Phase = "idle" // Nothing requested yet
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

// ErrorKind says why the interpreter is in PhaseError.
type ErrorKind string

const (
	ErrorLoadFailure  ErrorKind = "load_failure"
	ErrorNodeNotFound ErrorKind = "node_not_found"
)

const (
	DefaultPacingDelay    = 600 * time.Millisecond
	defaultHistoryTimeout = 2 * time.Second
)

var (
	// ErrNotReady is returned for input that arrives outside PhaseReady.
	ErrNotReady = errors.New("interpreter: not ready")
	// ErrSuperseded is returned when a newer request replaced this one.
	ErrSuperseded = errors.New("interpreter: superseded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("interpreter: closed")
	// ErrNavigation wraps navigator failures. The cursor never moves on redirect.
	ErrNavigation = errors.New("interpreter: navigation failed")
)

// ScenarioLoader produces scenarios. *loader.Loader implements it.
type ScenarioLoader interface {
	Load(ctx context.Context, lang string) (*dialogue.Scenario, error)
}

// Navigator opens a URL in a new, de-referenced browsing context.
type Navigator interface {
	Open(ctx context.Context, url string) error
}

// NopNavigator ignores every redirect.
type NopNavigator struct{}

func (NopNavigator) Open(context.Context, string) error { return nil }

// Options configures an Interpreter. Zero values are usable.
type Options struct {
	SessionID      string
	PacingDelay    time.Duration // 0 commits immediately
	Navigator      Navigator
	Recorder       history.Recorder
	Animation      *animation.Bridge // Owned: closed by Close
	Logger         *zap.Logger
	HistoryTimeout time.Duration
}

// Snapshot is an immutable view of the interpreter.
type Snapshot struct {
	Version       uint64
	Phase         Phase
	Lang          string // Requested language
	ScenarioLang  string // Language actually served
	Node          *dialogue.Node
	Path          []dialogue.NodeID
	Pending       bool   // A paced transition is waiting
	PendingChoice string // Choice id of the pending transition
	ErrorKind     ErrorKind
	Err           error
}

// CanRestart reports whether presentation should offer a restart.
func (s Snapshot) CanRestart() bool {
	if s.Phase == PhaseReady && s.Node != nil && s.Node.IsEnding {
		return true
	}
	return s.Phase == PhaseError && s.ErrorKind == ErrorNodeNotFound
}

// CanRetry reports whether presentation should offer a retry.
func (s Snapshot) CanRetry() bool {
	return s.Phase == PhaseError
}

// Interpreter is safe for concurrent use. Load and Choose block; hosts that
// need to stay responsive call them from their own goroutines.
type Interpreter struct {
	loader  ScenarioLoader
	nav     Navigator
	rec     history.Recorder
	bridge  *animation.Bridge
	log     *zap.Logger
	session string
	pacing  time.Duration
	histTO  time.Duration

	mu       sync.Mutex
	phase    Phase
	lang     string
	scenario *dialogue.Scenario
	state    *dialogue.State
	errKind  ErrorKind
	err      error
	version  uint64
	closed   bool
	changes  chan struct{}

	loadGen    uint64
	loadCancel context.CancelFunc

	choiceGen     uint64
	choiceCancel  context.CancelFunc
	pendingChoice string
}

// New creates an idle interpreter.
func New(l ScenarioLoader, opts Options) *Interpreter {
	i := &Interpreter{
		loader:  l,
		nav:     opts.Navigator,
		rec:     opts.Recorder,
		bridge:  opts.Animation,
		log:     opts.Logger,
		session: opts.SessionID,
		pacing:  opts.PacingDelay,
		histTO:  opts.HistoryTimeout,
		phase:   PhaseIdle,
		state:   dialogue.NewState(),
		changes: make(chan struct{}, 1),
	}
	if i.nav == nil {
		i.nav = NopNavigator{}
	}
	if i.rec == nil {
		i.rec = history.Nop{}
	}
	if i.log == nil {
		i.log = zap.NewNop()
	}
	if i.histTO <= 0 {
		i.histTO = defaultHistoryTimeout
	}
	if i.pacing < 0 {
		i.pacing = 0
	}
	i.log = i.log.With(zap.String("session", i.session))
	return i
}

// Changes signals (coalesced) whenever the snapshot version moves. It is
// closed by Close.
func (i *Interpreter) Changes() <-chan struct{} {
	return i.changes
}

// Snapshot returns the current view.
func (i *Interpreter) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()

	snap := Snapshot{
		Version:       i.version,
		Phase:         i.phase,
		Lang:          i.lang,
		Pending:       i.choiceCancel != nil,
		PendingChoice: i.pendingChoice,
		ErrorKind:     i.errKind,
		Err:           i.err,
	}
	if i.scenario != nil {
		snap.ScenarioLang = i.scenario.Lang
		snap.Path = append([]dialogue.NodeID(nil), i.state.Path...)
		if i.phase == PhaseReady {
			snap.Node = i.scenario.Node(i.state.Current)
		}
	}
	return snap
}

// Load fetches the scenario for lang and puts the cursor on the root. A newer
// Load supersedes this one; the superseded call returns ErrSuperseded and its
// result is discarded.
func (i *Interpreter) Load(ctx context.Context, lang string) error {
	lang = loader.NormalizeLang(lang)

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}
	i.loadGen++
	gen := i.loadGen
	if i.loadCancel != nil {
		i.loadCancel()
	}
	lctx, cancel := context.WithCancel(ctx)
	i.loadCancel = cancel
	i.cancelChoiceLocked()
	i.bridge.Cancel()

	i.phase = PhaseLoading
	i.lang = lang
	i.scenario = nil
	i.state.Reset()
	i.errKind, i.err = "", nil
	i.bumpLocked()
	i.mu.Unlock()

	s, err := i.loader.Load(lctx, lang)
	cancel()

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrClosed
	}
	if gen != i.loadGen {
		i.log.Debug("discarding superseded load", zap.String("lang", lang))
		return ErrSuperseded
	}
	i.loadCancel = nil

	if err == nil {
		_, err = dialogue.Restart(s)
	}
	if err != nil {
		i.failLocked(ErrorLoadFailure, err)
		i.log.Warn("scenario load failed", zap.String("lang", lang), zap.Error(err))
		return err
	}

	i.scenario = s
	i.state.Reset()
	i.phase = PhaseReady
	i.bumpLocked()
	i.cueLocked()
	i.log.Info("scenario loaded",
		zap.String("lang", lang), zap.String("served", s.Lang), zap.Int("nodes", s.Len()))
	return nil
}

// Retry reloads the most recently requested language.
func (i *Interpreter) Retry(ctx context.Context) error {
	i.mu.Lock()
	lang := i.lang
	i.mu.Unlock()
	return i.Load(ctx, lang)
}

// Restart puts the cursor back on the root of the loaded scenario.
func (i *Interpreter) Restart() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}
	if i.scenario == nil || i.phase == PhaseLoading {
		return ErrNotReady
	}
	root, err := dialogue.Restart(i.scenario)
	if err != nil {
		return err
	}
	i.cancelChoiceLocked()
	i.state.Reset()
	i.state.Current = root
	i.phase = PhaseReady
	i.errKind, i.err = "", nil
	i.bumpLocked()
	i.cueLocked()
	return nil
}

// Choose applies a choice offered by the current node.
//
// Redirects open the URL right away and never move the cursor. Transitions
// wait out the pacing delay and then commit; a newer Choose (redirects
// included), Restart, Load or Close during the wait makes this call return
// ErrSuperseded without committing. A choice whose target doesn't exist
// moves the interpreter to PhaseError and leaves the cursor where it was.
func (i *Interpreter) Choose(ctx context.Context, choiceID string) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}
	if i.phase != PhaseReady {
		i.mu.Unlock()
		return ErrNotReady
	}

	out, err := dialogue.Dispatch(i.scenario, i.state.Current, choiceID)
	if err != nil {
		if errors.Is(err, dialogue.ErrNodeNotFound) {
			i.cancelChoiceLocked()
			i.failLocked(ErrorNodeNotFound, err)
			i.log.Warn("choice points at a missing node", zap.String("choice", choiceID), zap.Error(err))
		}
		i.mu.Unlock()
		return err
	}

	if out.Kind == dialogue.OutcomeRedirect {
		// A redirect still counts as the user's latest choice.
		if i.pendingChoice != "" {
			i.cancelChoiceLocked()
			i.bumpLocked()
		}
		nav := i.nav
		i.mu.Unlock()
		if err := nav.Open(ctx, out.URL); err != nil {
			i.log.Warn("redirect failed", zap.String("url", out.URL), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrNavigation, err)
		}
		return nil
	}

	i.cancelChoiceLocked()
	gen := i.choiceGen

	if i.pacing > 0 {
		wctx, cancel := context.WithCancel(ctx)
		i.choiceCancel = cancel
		i.pendingChoice = choiceID
		i.bumpLocked()
		i.mu.Unlock()

		timer := time.NewTimer(i.pacing)
		select {
		case <-timer.C:
		case <-wctx.Done():
			timer.Stop()
		}

		i.mu.Lock()
		if gen != i.choiceGen || i.closed {
			i.mu.Unlock()
			return ErrSuperseded
		}
		if err := ctx.Err(); err != nil {
			i.cancelChoiceLocked()
			i.bumpLocked()
			i.mu.Unlock()
			return err
		}
		i.choiceCancel = nil
		i.pendingChoice = ""
		cancel()
	}

	i.state.Advance(out.Next)
	i.bumpLocked()
	i.cueLocked()
	step := history.Step{
		SessionID: i.session,
		Lang:      i.scenario.Lang,
		From:      string(out.From),
		Choice:    out.Choice.ID,
		To:        string(out.Next),
		At:        time.Now(),
	}
	i.mu.Unlock()

	i.record(ctx, step)
	return nil
}

// Close cancels in-flight work, stops the animation bridge and closes Changes.
func (i *Interpreter) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	i.loadGen++
	if i.loadCancel != nil {
		i.loadCancel()
		i.loadCancel = nil
	}
	i.cancelChoiceLocked()
	close(i.changes)
	i.mu.Unlock()

	i.bridge.Close()
}

// record stores a step best-effort. Failures never undo the transition.
func (i *Interpreter) record(ctx context.Context, step history.Step) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.histTO)
	defer cancel()
	if err := i.rec.Record(rctx, step); err != nil {
		i.log.Warn("choice history not recorded",
			zap.String("from", step.From), zap.String("choice", step.Choice), zap.Error(err))
	}
}

// cancelChoiceLocked supersedes any pending transition.
func (i *Interpreter) cancelChoiceLocked() {
	i.choiceGen++
	if i.choiceCancel != nil {
		i.choiceCancel()
		i.choiceCancel = nil
	}
	i.pendingChoice = ""
}

func (i *Interpreter) failLocked(kind ErrorKind, err error) {
	i.phase = PhaseError
	i.errKind = kind
	i.err = err
	i.bridge.Cancel()
	i.bumpLocked()
}

// cueLocked hands the current node's cue to the bridge.
func (i *Interpreter) cueLocked() {
	node := i.scenario.Node(i.state.Current)
	if node == nil {
		return
	}
	i.bridge.Cue(string(node.ID), node.AnimationCue)
}

func (i *Interpreter) bumpLocked() {
	i.version++
	if i.closed {
		return
	}
	select {
	case i.changes <- struct{}{}:
	default:
	}
}
