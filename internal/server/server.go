// Package server exposes event histories over HTTP: JSON snapshots, a
// server-sent event stream and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DeterminateSystems/ringbuffer/internal/history"
)

type Server struct {
	store     *history.Store
	broker    *history.Broker
	gatherer  prometheus.Gatherer
	heartbeat time.Duration
	logger    *zap.Logger
}

func New(store *history.Store, broker *history.Broker, gatherer prometheus.Gatherer, heartbeat time.Duration, logger *zap.Logger) *Server {
	return &Server{
		store:     store,
		broker:    broker,
		gatherer:  gatherer,
		heartbeat: heartbeat,
		logger:    logger.Named("http"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /history", s.getHistory)
	mux.HandleFunc("DELETE /history", s.resetHistory)
	mux.HandleFunc("POST /history/drain", s.drainHistory)
	mux.HandleFunc("GET /recent", s.getRecent)
	mux.HandleFunc("GET /events", s.events)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeJSON(w, http.StatusOK, s.store)
		return
	}

	l, ok := s.store.Get(key)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown key %q", key), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) resetHistory(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	ok, err := s.store.Reset(r.Context(), key)
	switch {
	case err != nil:
		s.logger.Error("reset failed", zap.String("key", key), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case !ok:
		http.Error(w, fmt.Sprintf("unknown key %q", key), http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) drainHistory(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	events, ok, err := s.store.Drain(r.Context(), key)
	switch {
	case err != nil:
		s.logger.Error("drain failed", zap.String("key", key), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case !ok:
		http.Error(w, fmt.Sprintf("unknown key %q", key), http.StatusNotFound)
	default:
		s.writeJSON(w, http.StatusOK, events)
	}
}

func (s *Server) getRecent(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Recent())
}

// events streams a snapshot followed by live events as server-sent events.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Mandatory SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no")

	// Subscribe before the snapshot so nothing recorded in between is lost.
	ch, unsubscribe := s.broker.Subscribe()
	defer unsubscribe()

	// Tell client to retry in 3s if disconnected
	if _, err := fmt.Fprint(w, "retry: 3000\n\n"); err != nil {
		return
	}

	var snapshot any = s.store
	if key != "" {
		events := []history.Event{}
		if l, ok := s.store.Get(key); ok {
			events = l.Events()
		}
		snapshot = events
	}
	if err := s.writeEvent(w, snapshot); err != nil {
		return
	}
	flusher.Flush()

	// Heartbeats to keep connections alive through proxies
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if key != "" && ev.Key != key {
				continue
			}
			if err := s.writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		// Skip the payload but keep the stream.
		s.logger.Error("JSON marshalling error", zap.Error(err))
		return nil
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("JSON marshalling error", zap.Error(err))
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
