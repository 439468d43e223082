package server

import (
	"context"
	"testing"
	"time"

	"DialogueWidget/internal/animation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHubCleanupIdle(t *testing.T) {
	h := NewHub()
	stale := newSession(context.Background(), "stale")
	fresh := newSession(context.Background(), "fresh")
	stale.lastSeen = time.Now().Add(-time.Hour)
	h.Add(stale)
	h.Add(fresh)

	assert.Equal(t, 1, h.CleanupIdle(time.Minute))
	assert.Equal(t, 1, h.Len())
	assert.Nil(t, h.Get("stale"))
	assert.NotNil(t, h.Get("fresh"))

	select {
	case <-stale.Done():
	default:
		t.Fatalf("idle session should be closed")
	}

	h.CloseAll()
	assert.Zero(t, h.Len())
	<-fresh.Done()
}

func TestSessionEnqueue(t *testing.T) {
	s := newSession(context.Background(), "s")
	for i := 0; i < sendQueueSize; i++ {
		require.NoError(t, s.enqueue(outboundMessage{Type: "animation"}))
	}
	assert.ErrorIs(t, s.enqueue(outboundMessage{Type: "animation"}), errQueueFull)

	s.Close()
	assert.ErrorIs(t, s.enqueue(outboundMessage{Type: "animation"}), errSessionClosed)
}

func TestRemoteEngineReadiness(t *testing.T) {
	var sent []outboundMessage
	e := &remoteEngine{send: func(m outboundMessage) error {
		sent = append(sent, m)
		return nil
	}}

	assert.ErrorIs(t, e.PlayAnimation("wave"), animation.ErrEngineNotReady)
	require.NoError(t, e.Initialize("#stage"))
	require.NoError(t, e.PlayAnimation("wave"))
	e.Cleanup()
	assert.ErrorIs(t, e.PlayAnimation("bow"), animation.ErrEngineNotReady)

	require.Len(t, sent, 1)
	assert.Equal(t, outboundMessage{Type: "animation", Payload: animationDTO{Cue: "wave"}}, sent[0])
}

func TestEngineReadyPayload(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	sess := newSession(context.Background(), "s")
	defer sess.Close()

	handleInbound(context.Background(), sess, inboundMessage{Type: "engine:ready", Payload: []byte(`"#stage"`)}, log)
	assert.ErrorIs(t, sess.engine.PlayAnimation("wave"), animation.ErrEngineNotReady)
	require.Equal(t, 1, logs.FilterMessage("invalid engine payload").Len())

	handleInbound(context.Background(), sess, inboundMessage{Type: "engine:ready"}, log)
	require.NoError(t, sess.engine.PlayAnimation("wave"))

	handleInbound(context.Background(), sess, inboundMessage{Type: "engine:ready", Payload: []byte(`{"container": "#stage"}`)}, log)
	assert.Equal(t, "#stage", sess.engine.container)
	assert.Equal(t, 1, logs.Len())
}

func TestRemoteNavigatorIsolatesTab(t *testing.T) {
	var got outboundMessage
	nav := remoteNavigator{send: func(m outboundMessage) error {
		got = m
		return nil
	}}
	require.NoError(t, nav.Open(context.Background(), "https://example.com/portal"))
	assert.Equal(t, "navigate", got.Type)
	assert.Equal(t, navigateDTO{URL: "https://example.com/portal", Target: "_blank", Rel: "noopener noreferrer"}, got.Payload)
}

func TestParseSessionOverrides(t *testing.T) {
	o := parseSessionOverrides(map[string][]string{"lang": {"fr"}, "pacing": {"0s"}})
	assert.Equal(t, "fr", o.Lang)
	require.NotNil(t, o.Pacing)
	assert.Zero(t, *o.Pacing)

	o = parseSessionOverrides(map[string][]string{"pacing": {"-1s"}})
	assert.Nil(t, o.Pacing)
}
