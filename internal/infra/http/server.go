package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/infra/metrics"
	"build-notifier/internal/infra/worker"
)

const maxWebhookBody = 1 << 20

type BuildNotifier interface {
	Notify(ctx context.Context, w *model.BuildWebhook) (int, error)
}

type TaskSubmitter interface {
	Submit(name string, task worker.Task) error
}

// Server exposes the Bamboo webhook, a health check and Prometheus metrics.
type Server struct {
	notifier BuildNotifier
	pool     TaskSubmitter
	log      zerolog.Logger
	srv      *http.Server
}

func NewServer(addr string, notifier BuildNotifier, pool TaskSubmitter, logger *zerolog.Logger) *Server {
	s := &Server{
		notifier: notifier,
		pool:     pool,
		log:      logger.With().Str("component", "http").Logger(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Post("/api/webhook/bamboo", s.handleBambooWebhook)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Server) handleBambooWebhook(w http.ResponseWriter, r *http.Request) {
	var hook model.BuildWebhook
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err := dec.Decode(&hook); err != nil {
		metrics.IncWebhook("malformed")
		s.log.Warn().Err(err).Msg("malformed webhook body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed webhook"})
		return
	}

	log := s.log.With().Str("uuid", hook.UUID).Str("status", hook.Build.Status).Logger()
	if !hook.Failed() {
		metrics.IncWebhook("ignored")
		log.Debug().Msg("webhook for a non failed build ignored")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}

	err := s.pool.Submit("webhook "+hook.UUID, func(ctx context.Context) error {
		_, err := s.notifier.Notify(ctx, &hook)
		return err
	})
	if err != nil {
		metrics.IncWebhook("rejected")
		log.Error().Err(err).Msg("webhook not queued")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy"})
		return
	}
	log.Info().Str("plan", hook.PlanName()).Msg("failed build webhook accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
