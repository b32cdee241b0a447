package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// CountsFunc reports checkpoint entries per state.
type CountsFunc func(ctx context.Context) (map[model.CheckpointState]int, error)

type statusResponse struct {
	Run         *model.RunSummary             `json:"run,omitempty"`
	SuccessRate *float64                      `json:"success_rate,omitempty"`
	Checkpoints map[model.CheckpointState]int `json:"checkpoints,omitempty"`
	Error       string                        `json:"error,omitempty"`
}

// Router serves /metrics, /healthz and /status. counts may be nil.
func Router(m *Metrics, counts CountsFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		resp := statusResponse{Run: m.Summary()}
		if resp.Run != nil {
			rate := resp.Run.SuccessRate()
			resp.SuccessRate = &rate
		}
		status := http.StatusOK
		if counts != nil {
			c, err := counts(req.Context())
			if err != nil {
				resp.Error = err.Error()
				status = http.StatusServiceUnavailable
			}
			resp.Checkpoints = c
		}
		writeJSON(w, status, resp)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("metrics: write response", zap.Error(err))
	}
}

// Serve runs handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("status server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "metrics: listen")
	}
	return nil
}
