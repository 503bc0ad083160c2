package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mehmetymw/blocksink/internal/notifier"
	"github.com/mehmetymw/blocksink/internal/types"
)

const maxBodyBytes = 4 << 20

type healthz struct {
	Status    string          `json:"status"`
	Sinks     notifier.Status `json:"sinks"`
	Timestamp string          `json:"timestamp"`
}

func newRouter(n *notifier.Notifier, gatherer prometheus.Gatherer, logger *zap.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Post("/v1/blocks", func(w http.ResponseWriter, r *http.Request) {
		var info types.ReplicaBlockInfo
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&info); err != nil {
			logger.Debug("Rejected block notification", zap.Error(err))
			http.Error(w, "invalid block notification: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := n.NotifyBlockMetadata(r.Context(), &info); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthz{Status: "running", Sinks: n.Status(), Timestamp: time.Now().Format(time.RFC3339)}
		b, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return router
}
