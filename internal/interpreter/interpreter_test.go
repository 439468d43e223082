package interpreter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"DialogueWidget/internal/animation"
	"DialogueWidget/internal/dialogue"
	"DialogueWidget/internal/history"
	"DialogueWidget/internal/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const enDoc = `{
	"start": {
		"speaker": "Agent",
		"text": "Hello",
		"animationCue": "wave",
		"choices": [
			{"id": "next", "text": "Go on", "nextNodeId": "n2"},
			{"id": "ghost", "text": "Into the void", "nextNodeId": "ghost"},
			{"id": "site", "text": "Visit", "action": "redirect", "url": "https://example.com"}
		]
	},
	"n2": {"text": "Second", "animationCue": "point", "choices": [{"id": "end", "text": "Finish", "nextNodeId": "bye"}]},
	"bye": {"text": "Bye", "isEnding": true}
}`

const frDoc = `{"start": {"text": "Bonjour", "choices": [{"id": "fin", "text": "Fin", "nextNodeId": "bye"}]}, "bye": {"text": "Au revoir", "isEnding": true}}`

type navigator struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (n *navigator) Open(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return n.err
}

func (n *navigator) opened() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

type recorder struct {
	mu    sync.Mutex
	steps []history.Step
	err   error
}

func (r *recorder) Record(_ context.Context, step history.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.steps = append(r.steps, step)
	return nil
}

func (r *recorder) recorded() []history.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]history.Step(nil), r.steps...)
}

// gateLoader blocks loads for gated languages until the gate closes or the
// load is cancelled.
type gateLoader struct {
	inner   ScenarioLoader
	gates   map[string]chan struct{}
	started chan string
}

func (g *gateLoader) Load(ctx context.Context, lang string) (*dialogue.Scenario, error) {
	if gate, ok := g.gates[lang]; ok {
		g.started <- lang
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.inner.Load(ctx, lang)
}

type fixture struct {
	interp  *Interpreter
	catalog *loader.CatalogSource
	engine  *animation.RecordingEngine
	nav     *navigator
	rec     *recorder
}

func newFixture(t *testing.T, pacing time.Duration) *fixture {
	t.Helper()
	catalog := loader.NewCatalogSource(map[string][]byte{"en": []byte(enDoc), "fr": []byte(frDoc)})
	l, err := loader.New(catalog, loader.Options{DisableCache: true})
	require.NoError(t, err)
	return newFixtureWith(t, l, catalog, pacing)
}

func newFixtureWith(t *testing.T, l ScenarioLoader, catalog *loader.CatalogSource, pacing time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		catalog: catalog,
		engine:  &animation.RecordingEngine{},
		nav:     &navigator{},
		rec:     &recorder{},
	}
	f.engine.SetReady(true)
	f.interp = New(l, Options{
		SessionID:   "test",
		PacingDelay: pacing,
		Navigator:   f.nav,
		Recorder:    f.rec,
		Animation:   animation.NewBridge(f.engine, animation.Config{Interval: time.Millisecond, MaxAttempts: 5}),
	})
	t.Cleanup(f.interp.Close)
	return f
}

func TestNewInterpreterIsIdle(t *testing.T) {
	f := newFixture(t, 0)
	snap := f.interp.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Node)
	assert.ErrorIs(t, f.interp.Choose(context.Background(), "next"), ErrNotReady)
}

// TestLoadPlacesCursorOnRoot tests a successful load and the root cue
func TestLoadPlacesCursorOnRoot(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.interp.Load(context.Background(), "en"))

	snap := f.interp.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	require.NotNil(t, snap.Node)
	assert.Equal(t, dialogue.RootID, snap.Node.ID)
	assert.Equal(t, []dialogue.NodeID{"start"}, snap.Path)
	assert.Equal(t, "en", snap.ScenarioLang)
	assert.Empty(t, snap.ErrorKind)

	require.Eventually(t, func() bool { return len(f.engine.Cues()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"wave"}, f.engine.Cues())
}

func TestLoadFallsBackToDefaultLanguage(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.interp.Load(context.Background(), "de"))

	snap := f.interp.Snapshot()
	assert.Equal(t, "de", snap.Lang)
	assert.Equal(t, "en", snap.ScenarioLang)
}

func TestChooseAdvancesAndRecords(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	require.NoError(t, f.interp.Choose(ctx, "next"))

	snap := f.interp.Snapshot()
	assert.Equal(t, dialogue.NodeID("n2"), snap.Node.ID)
	assert.Equal(t, []dialogue.NodeID{"start", "n2"}, snap.Path)
	assert.False(t, snap.CanRestart())

	steps := f.rec.recorded()
	require.Len(t, steps, 1)
	assert.Equal(t, history.Step{SessionID: "test", Lang: "en", From: "start", Choice: "next", To: "n2", At: steps[0].At}, steps[0])

	require.Eventually(t, func() bool {
		cues := f.engine.Cues()
		return len(cues) > 0 && cues[len(cues)-1] == "point"
	}, time.Second, time.Millisecond)
}

func TestEndingOffersRestart(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))
	require.NoError(t, f.interp.Choose(ctx, "next"))
	require.NoError(t, f.interp.Choose(ctx, "end"))

	snap := f.interp.Snapshot()
	assert.True(t, snap.Node.IsEnding)
	assert.True(t, snap.CanRestart())

	require.NoError(t, f.interp.Restart())
	snap = f.interp.Snapshot()
	assert.Equal(t, dialogue.RootID, snap.Node.ID)
	assert.Equal(t, []dialogue.NodeID{"start"}, snap.Path)
}

// TestRedirectLeavesCursor tests that redirects open a URL and nothing else
func TestRedirectLeavesCursor(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))
	before := f.interp.Snapshot()

	require.NoError(t, f.interp.Choose(ctx, "site"))

	after := f.interp.Snapshot()
	assert.Equal(t, []string{"https://example.com"}, f.nav.opened())
	assert.Equal(t, before.Node.ID, after.Node.ID)
	assert.Equal(t, before.Path, after.Path)
	assert.Equal(t, before.Version, after.Version)
	assert.Empty(t, f.rec.recorded())
}

func TestRedirectNavigationFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.nav.err = errors.New("popup blocked")
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	err := f.interp.Choose(ctx, "site")
	assert.ErrorIs(t, err, ErrNavigation)
	snap := f.interp.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, dialogue.RootID, snap.Node.ID)
}

// TestDeadLinkMovesToError tests that a missing target is an error state,
// the cursor stays put, and restart recovers
func TestDeadLinkMovesToError(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	err := f.interp.Choose(ctx, "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, dialogue.ErrNodeNotFound)

	snap := f.interp.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, ErrorNodeNotFound, snap.ErrorKind)
	assert.Nil(t, snap.Node)
	assert.Equal(t, []dialogue.NodeID{"start"}, snap.Path)
	assert.True(t, snap.CanRestart())
	assert.True(t, snap.CanRetry())

	assert.ErrorIs(t, f.interp.Choose(ctx, "next"), ErrNotReady)

	require.NoError(t, f.interp.Restart())
	snap = f.interp.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, dialogue.RootID, snap.Node.ID)
	assert.Empty(t, snap.ErrorKind)
	assert.NoError(t, snap.Err)
}

func TestUnknownChoiceKeepsReady(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	assert.ErrorIs(t, f.interp.Choose(ctx, "nope"), dialogue.ErrChoiceNotFound)
	assert.Equal(t, PhaseReady, f.interp.Snapshot().Phase)
}

// TestLoadFailureThenRetry tests the error state for an unavailable scenario
func TestLoadFailureThenRetry(t *testing.T) {
	catalog := loader.NewCatalogSource(nil)
	l, err := loader.New(catalog, loader.Options{DisableCache: true})
	require.NoError(t, err)
	f := newFixtureWith(t, l, catalog, 0)
	ctx := context.Background()

	err = f.interp.Load(ctx, "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrLoadFailure)

	snap := f.interp.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, ErrorLoadFailure, snap.ErrorKind)
	assert.True(t, snap.CanRetry())
	assert.False(t, snap.CanRestart())
	assert.ErrorIs(t, f.interp.Restart(), ErrNotReady)
	assert.ErrorIs(t, f.interp.Choose(ctx, "next"), ErrNotReady)

	catalog.Set("en", []byte(enDoc))
	require.NoError(t, f.interp.Retry(ctx))
	snap = f.interp.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, dialogue.RootID, snap.Node.ID)
}

// TestLastLoadWins tests that an older, slower load never overwrites a newer one
func TestLastLoadWins(t *testing.T) {
	catalog := loader.NewCatalogSource(map[string][]byte{"en": []byte(enDoc), "fr": []byte(frDoc)})
	inner, err := loader.New(catalog, loader.Options{DisableCache: true})
	require.NoError(t, err)
	gl := &gateLoader{
		inner:   inner,
		gates:   map[string]chan struct{}{"fr": make(chan struct{})},
		started: make(chan string, 1),
	}
	f := newFixtureWith(t, gl, catalog, 0)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.interp.Load(ctx, "fr") }()
	require.Equal(t, "fr", <-gl.started)
	assert.Equal(t, PhaseLoading, f.interp.Snapshot().Phase)

	require.NoError(t, f.interp.Load(ctx, "en"))
	assert.ErrorIs(t, <-done, ErrSuperseded)

	snap := f.interp.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, "en", snap.Lang)
	assert.Equal(t, "en", snap.ScenarioLang)
	assert.Equal(t, "Hello", snap.Node.Text)
}

func TestPacedTransitionCommits(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	start := time.Now()
	require.NoError(t, f.interp.Choose(ctx, "next"))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, dialogue.NodeID("n2"), f.interp.Snapshot().Node.ID)
}

// TestPendingTransitionSupersededByRestart tests the pacing window
func TestPendingTransitionSupersededByRestart(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	done := make(chan error, 1)
	go func() { done <- f.interp.Choose(ctx, "next") }()
	require.Eventually(t, func() bool { return f.interp.Snapshot().Pending }, time.Second, time.Millisecond)
	snap := f.interp.Snapshot()
	assert.Equal(t, "next", snap.PendingChoice)
	assert.Equal(t, dialogue.RootID, snap.Node.ID, "cursor moves only on commit")

	require.NoError(t, f.interp.Restart())
	assert.ErrorIs(t, <-done, ErrSuperseded)

	snap = f.interp.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, dialogue.RootID, snap.Node.ID)
	assert.Empty(t, f.rec.recorded())
}

// TestPendingTransitionSupersededByChoice tests that paced transitions never stack
func TestPendingTransitionSupersededByChoice(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	first := make(chan error, 1)
	go func() { first <- f.interp.Choose(ctx, "next") }()
	require.Eventually(t, func() bool { return f.interp.Snapshot().Pending }, time.Second, time.Millisecond)

	require.NoError(t, f.interp.Choose(ctx, "next"))
	assert.ErrorIs(t, <-first, ErrSuperseded)

	snap := f.interp.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, dialogue.NodeID("n2"), snap.Node.ID)
	assert.Equal(t, []dialogue.NodeID{"start", "n2"}, snap.Path)
	assert.Len(t, f.rec.recorded(), 1)
}

func TestRedirectSupersedesPendingTransition(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	pending := make(chan error, 1)
	go func() { pending <- f.interp.Choose(ctx, "next") }()
	require.Eventually(t, func() bool { return f.interp.Snapshot().Pending }, time.Second, time.Millisecond)
	before := f.interp.Snapshot()

	require.NoError(t, f.interp.Choose(ctx, "site"))
	assert.ErrorIs(t, <-pending, ErrSuperseded)

	snap := f.interp.Snapshot()
	assert.Equal(t, []string{"https://example.com"}, f.nav.opened())
	assert.False(t, snap.Pending)
	assert.Equal(t, dialogue.RootID, snap.Node.ID)
	assert.Greater(t, snap.Version, before.Version)
	assert.Empty(t, f.rec.recorded())
}

func TestPendingTransitionCancelledByContext(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.NoError(t, f.interp.Load(context.Background(), "en"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.interp.Choose(ctx, "next") }()
	require.Eventually(t, func() bool { return f.interp.Snapshot().Pending }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	snap := f.interp.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, dialogue.RootID, snap.Node.ID)
}

func TestHistoryFailureDoesNotUndoTransition(t *testing.T) {
	f := newFixture(t, 0)
	f.rec.err = errors.New("disk full")
	ctx := context.Background()
	require.NoError(t, f.interp.Load(ctx, "en"))

	require.NoError(t, f.interp.Choose(ctx, "next"))
	assert.Equal(t, dialogue.NodeID("n2"), f.interp.Snapshot().Node.ID)
}

func TestChangesSignalsAndCloses(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.interp.Load(context.Background(), "en"))

	select {
	case _, ok := <-f.interp.Changes():
		assert.True(t, ok)
	default:
		t.Fatalf("expected a pending change signal after load")
	}

	f.interp.Close()
	_, ok := <-f.interp.Changes()
	assert.False(t, ok)

	assert.ErrorIs(t, f.interp.Choose(context.Background(), "next"), ErrClosed)
	assert.ErrorIs(t, f.interp.Load(context.Background(), "en"), ErrClosed)
	assert.ErrorIs(t, f.interp.Restart(), ErrClosed)
}
