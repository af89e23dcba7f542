package main

import (
    "context"
    "flag"
    "os/signal"
    "syscall"
    "time"

    "machine-stream/internal/app"
    "machine-stream/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
    configPath := flag.String("config", "", "path to the configuration file")
    flag.Parse()

    ctx, ctxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer ctxCancel()

    cfg, err := config.Load(*configPath)
    if err != nil {
        panic(err)
    }

    app, err := app.NewApp(
        app.WithMongoDBConfig(cfg.MongoDB),
        app.WithWebSocketConfig(cfg.WebSocket),
        app.WithLogLevel(cfg.Logging.Level),
        app.WithPublicAPIConfig(app.PublicAPIConfig{
            PublicAPIHttpServerPort: cfg.PublicAPI.Port,
        }),
    )
    if err != nil {
        panic(err)
    }

    err = app.Run(ctx)
    if err != nil {
        panic(err)
    }

    <-ctx.Done()

    shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), shutdownTimeout)
    defer shutdownCtxCancel()

    app.Stop(shutdownCtx)
}
