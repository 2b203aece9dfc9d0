// Package server exposes crawl runs over HTTP as a server-sent event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/lukemcguire/zombiemap/crawler"
)

// Streamer starts crawl runs.
type Streamer interface {
	Stream(ctx context.Context, siteURL string) (iter.Seq[crawler.Event], error)
}

// Options configures the handler.
type Options struct {
	AllowedOrigin string // CORS origin, "*" when empty
	Logger        *log.Logger
}

// NewHandler returns the HTTP handler serving the stream endpoint and a
// health check, wrapped in CORS and request logging.
func NewHandler(streamer Streamer, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	origin := opts.AllowedOrigin
	if origin == "" {
		origin = "*"
	}

	h := &streamHandler{streamer: streamer, logger: logger}

	mux := http.NewServeMux()
	mux.Handle("GET /check-links-stream", h)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return withCORS(origin, withRequestLog(logger, mux))
}

type streamHandler struct {
	streamer Streamer
	logger   *log.Logger
}

func (h *streamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	site := r.URL.Query().Get("url")

	events, err := h.streamer.Stream(r.Context(), site)
	if errors.Is(err, crawler.ErrMissingInput) {
		writeJSONError(w, http.StatusBadRequest, "Site URL is required")
		return
	}
	if err != nil {
		h.logger.Error("start crawl", "site", site, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "Unable to start crawl")
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("response does not support flushing", "err", err)
	}

	for ev := range events {
		if err := writeEvent(w, ev); err != nil {
			h.logger.Info("client went away, stopping crawl", "site", site, "err", err)
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.logger.Info("flush failed, stopping crawl", "site", site, "err", err)
			return
		}
		if ev.Terminal() {
			h.logger.Info("stream finished", "site", site, "status", ev.Kind)
		}
	}
}

// writeEvent writes one SSE frame.
func writeEvent(w http.ResponseWriter, ev crawler.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
