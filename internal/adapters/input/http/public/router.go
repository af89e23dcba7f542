package public

import (
    "net/http"

    "github.com/gorilla/mux"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter serves the events endpoints plus the Prometheus exposition of gatherer on /metrics.
func NewRouter(handler *Handler, gatherer prometheus.Gatherer) *mux.Router {
    router := mux.NewRouter()
    handler.Register(router)
    router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
    return router
}
