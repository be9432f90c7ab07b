package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zabeloliver/smarthome-bridge/platform"
)

type objectView struct {
	platform.Object
	State *platform.State `json:"state,omitempty"`
}

// NewRouter exposes the metrics registry, a health probe and a read-only
// view of the registered objects.
func NewRouter(reg *prometheus.Registry, store platform.Store, logger *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/objects", func(w http.ResponseWriter, req *http.Request) {
		objs := store.Objects()
		out := make([]objectView, 0, len(objs))
		for _, o := range objs {
			v := objectView{Object: o}
			if st, err := store.GetState(req.Context(), o.Id); err == nil {
				v.State = &st
			}
			out = append(out, v)
		}
		writeJSON(w, logger, out)
	})
	r.Get("/objects/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		o, err := store.GetObject(req.Context(), id)
		if err != nil {
			http.Error(w, "object not found", http.StatusNotFound)
			return
		}
		v := objectView{Object: o}
		if st, err := store.GetState(req.Context(), id); err == nil {
			v.State = &st
		}
		writeJSON(w, logger, v)
	})
	return r
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorw("encoding response failed", "error", err)
	}
}
