package app

import (
    "log/slog"

    "machine-stream/internal/config"

    "github.com/prometheus/client_golang/prometheus"
)

type Option func(app *App)

func WithPublicAPIConfig(config PublicAPIConfig) func(a *App) {
    return func(a *App) {
        a.publicAPIConfig = NewOptional[PublicAPIConfig](config)
    }
}

func WithMongoDBConfig(config config.MongoDBConfig) func(a *App) {
    return func(a *App) { a.mongoDBConfig = config }
}

func WithWebSocketConfig(config config.WebSocketConfig) func(a *App) {
    return func(a *App) { a.webSocketConfig = config }
}

// WithLogLevel sets the level of the default zap logger. It has no effect
// when a handler is provided through WithLogHandler.
func WithLogLevel(level string) func(a *App) {
    return func(a *App) { a.logLevel = level }
}

func WithLogHandler(handler slog.Handler) func(app *App) {
    return func(app *App) { app.logHandler = handler }
}

func WithMetricsRegistry(registry *prometheus.Registry) func(a *App) {
    return func(a *App) { a.metricsRegistry = registry }
}
