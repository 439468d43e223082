package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"DialogueWidget/internal/loader"
)

/* ------------------------------- HTTP ------------------------------- */

func newMux(a *App) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data/dialogues/{file}", func(w http.ResponseWriter, r *http.Request) {
		lang, ok := strings.CutSuffix(r.PathValue("file"), ".json")
		if !ok || !loader.ValidLang(loader.NormalizeLang(lang)) {
			http.NotFound(w, r)
			return
		}
		data, ok := a.catalog.Document(r.Context(), lang)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(healthDTO{
			Status:    "ok",
			Languages: a.catalog.Languages(),
			Sessions:  a.hub.Len(),
		})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(a, w, r)
	})
	return mux
}
