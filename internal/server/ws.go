package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"DialogueWidget/internal/animation"
	"DialogueWidget/internal/interpreter"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	stateRate  = 100 * time.Millisecond // Snapshot pushes are coalesced to this rate
	writeWait  = 5 * time.Second
	maxMessage = 4 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sessionOverrides are per-connection knobs taken from the query string.
type sessionOverrides struct {
	Lang   string
	Pacing *time.Duration
}

func parseSessionOverrides(values url.Values) sessionOverrides {
	o := sessionOverrides{Lang: values.Get("lang")}
	if raw := values.Get("pacing"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
			o.Pacing = &d
		}
	}
	return o
}

func serveWS(a *App, w http.ResponseWriter, r *http.Request) {
	overrides := parseSessionOverrides(r.URL.Query())
	lang := overrides.Lang
	if lang == "" {
		lang = a.cfg.DefaultLang
	}
	pacing := a.cfg.PacingDelay
	if overrides.Pacing != nil {
		pacing = *overrides.Pacing
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessage)

	sess := newSession(a.ctx, uuid.NewString())
	log := a.log.With(zap.String("session", sess.ID))
	bridge := animation.NewBridge(sess.engine, a.cfg.BridgeConfig(), animation.WithLogger(log))
	sess.Interp = interpreter.New(a.loader, interpreter.Options{
		SessionID:   sess.ID,
		PacingDelay: pacing,
		Navigator:   remoteNavigator{send: sess.enqueue},
		Recorder:    a.recorder,
		Animation:   bridge,
		Logger:      log,
	})
	a.hub.Add(sess)
	log.Info("session opened", zap.String("lang", lang), zap.String("remote", r.RemoteAddr))

	ctx := sess.ctx
	go func() {
		if err := sess.Interp.Load(ctx, lang); err != nil && !ignorable(err) {
			log.Debug("initial load failed", zap.Error(err))
		}
	}()

	go func() {
		defer sess.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.TextMessage {
				log.Debug("unsupported websocket frame", zap.Int("type", msgType))
				continue
			}
			var inbound inboundMessage
			if err := json.Unmarshal(data, &inbound); err != nil {
				log.Debug("invalid JSON message", zap.Error(err))
				continue
			}
			sess.Touch()
			handleInbound(ctx, sess, inbound, log)
		}
	}()

	go func() {
		var lastVersion uint64
		pushed := false
		tick := time.NewTicker(stateRate)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sess.out:
				if err := writeJSON(conn, msg); err != nil {
					log.Debug("send error", zap.Error(err))
					sess.Close()
					return
				}
			case <-tick.C:
				snap := sess.Interp.Snapshot()
				if pushed && snap.Version == lastVersion {
					continue
				}
				if err := writeJSON(conn, outboundMessage{Type: "state", Payload: stateFromSnapshot(snap)}); err != nil {
					log.Debug("send state error", zap.Error(err))
					sess.Close()
					return
				}
				lastVersion, pushed = snap.Version, true
			}
		}
	}()

	<-ctx.Done()
	a.hub.Remove(sess.ID)
	sess.Interp.Close()
	conn.Close()
	log.Info("session closed")
}

func handleInbound(ctx context.Context, sess *Session, msg inboundMessage, log *zap.Logger) {
	interp := sess.Interp
	switch msg.Type {
	case "choose":
		var payload choosePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.ChoiceID == "" {
			log.Debug("invalid choose payload", zap.ByteString("payload", msg.Payload))
			return
		}
		go func() {
			if err := interp.Choose(ctx, payload.ChoiceID); err != nil && !ignorable(err) {
				log.Debug("choice rejected", zap.String("choice", payload.ChoiceID), zap.Error(err))
			}
		}()
	case "restart":
		if err := interp.Restart(); err != nil && !ignorable(err) {
			log.Debug("restart rejected", zap.Error(err))
		}
	case "retry":
		go func() {
			if err := interp.Retry(ctx); err != nil && !ignorable(err) {
				log.Debug("retry failed", zap.Error(err))
			}
		}()
	case "language":
		var payload languagePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Lang == "" {
			log.Debug("invalid language payload", zap.ByteString("payload", msg.Payload))
			return
		}
		go func() {
			if err := interp.Load(ctx, payload.Lang); err != nil && !ignorable(err) {
				log.Debug("language switch failed", zap.String("lang", payload.Lang), zap.Error(err))
			}
		}()
	case "engine:ready":
		// The container is optional; an absent payload is fine.
		var payload enginePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				log.Debug("invalid engine payload", zap.ByteString("payload", msg.Payload), zap.Error(err))
				return
			}
		}
		if err := sess.engine.Initialize(payload.Container); err != nil {
			log.Debug("engine initialize failed", zap.String("container", payload.Container), zap.Error(err))
		}
	case "engine:lost":
		sess.engine.Cleanup()
	default:
		log.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

// ignorable errors are expected outcomes of racing input, not failures.
func ignorable(err error) bool {
	return errors.Is(err, interpreter.ErrSuperseded) ||
		errors.Is(err, interpreter.ErrClosed) ||
		errors.Is(err, context.Canceled)
}

func writeJSON(conn *websocket.Conn, msg outboundMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
