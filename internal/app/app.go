package app

import (
    "context"
    "crypto/tls"
    "errors"
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "machine-stream/internal/adapters/input/http/public"
    wsadapter "machine-stream/internal/adapters/input/websocket"
    "machine-stream/internal/adapters/mongodb"
    "machine-stream/internal/config"
    "machine-stream/internal/domain/events"
    "machine-stream/internal/metrics"
    "machine-stream/pkg/logattr"
    "machine-stream/pkg/websocket"

    gorillaws "github.com/gorilla/websocket"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/walletera/eventskit/messages"
    "github.com/walletera/werrors"
    "go.mongodb.org/mongo-driver/v2/mongo"
    "go.mongodb.org/mongo-driver/v2/mongo/options"
    "go.uber.org/zap"
    "go.uber.org/zap/exp/zapslog"
    "go.uber.org/zap/zapcore"
)

const (
    ServiceName              = "machine-stream"
    messageProcessingTimeout = 30 * time.Second
)

type App struct {
    mongoDBConfig     config.MongoDBConfig
    webSocketConfig   config.WebSocketConfig
    publicAPIConfig   Optional[PublicAPIConfig]
    logLevel          string
    logHandler        slog.Handler
    logger            *slog.Logger
    metricsRegistry   *prometheus.Registry
    metrics           *metrics.Metrics
    mongoClient       *mongo.Client
    pipeline          *wsadapter.Pipeline
    httpServersToStop []*http.Server
}

func NewApp(opts ...Option) (*App, error) {
    app := &App{}
    setDefaultOpts(app)
    for _, opt := range opts {
        opt(app)
    }
    if app.logHandler == nil {
        zapLogger, err := newZapLogger(app.logLevel)
        if err != nil {
            return nil, fmt.Errorf("failed setting default options: %w", err)
        }
        app.logHandler = zapslog.NewHandler(zapLogger.Core())
    }
    return app, nil
}

func (app *App) Run(ctx context.Context) error {
    app.logger = slog.
        New(app.logHandler).
        With(logattr.ServiceName(ServiceName))

    app.metrics = metrics.New(app.metricsRegistry)

    mongoClient, err := newMongoClient(app.mongoDBConfig)
    if err != nil {
        return fmt.Errorf("error connecting to mongodb: %w", err)
    }
    app.mongoClient = mongoClient

    repository := mongodb.NewEventsRepository(
        mongoClient,
        app.mongoDBConfig.Database,
        app.mongoDBConfig.Collection,
        app.logger.With(logattr.Component("mongodb.EventsRepository")),
        app.metrics,
    )

    processor, err := createEventsMessageProcessor(app, repository)
    if err != nil {
        return fmt.Errorf("error creating events message processor: %w", err)
    }

    var httpServersToStop []*http.Server

    if app.publicAPIConfig.Set {
        publicApiHttpServer, err := app.startPublicAPIHTTPServer(repository)
        if err != nil {
            return fmt.Errorf("failed starting public api http server: %w", err)
        }
        httpServersToStop = append(httpServersToStop, publicApiHttpServer)
    }
    app.httpServersToStop = httpServersToStop

    err = processor.Start(ctx)
    if err != nil {
        return fmt.Errorf("error starting events message processor: %w", err)
    }

    app.pipeline.ConnectAndRegister(ctx)

    app.logger.Info("machine-stream started")

    return nil
}

func (app *App) Stop(ctx context.Context) {
    if app.pipeline != nil {
        app.pipeline.DisconnectAndDispose()
    }
    for _, httpServer := range app.httpServersToStop {
        err := httpServer.Shutdown(ctx)
        if err != nil {
            app.logger.Error("error stopping http server", logattr.Error(err.Error()))
        }
    }
    if app.mongoClient != nil {
        err := app.mongoClient.Disconnect(ctx)
        if err != nil {
            app.logger.Error("error disconnecting from mongo", logattr.Error(err.Error()))
        }
    }
    app.logger.Info("machine-stream stopped")
}

func setDefaultOpts(app *App) {
    app.logLevel = "info"
    app.metricsRegistry = prometheus.NewRegistry()
    app.metricsRegistry.MustRegister(
        collectors.NewGoCollector(),
        collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
    )
}

func newZapLogger(level string) (*zap.Logger, error) {
    atomicLevel, err := zap.ParseAtomicLevel(level)
    if err != nil {
        return nil, fmt.Errorf("invalid log level %q: %w", level, err)
    }
    encoderConfig := zap.NewProductionEncoderConfig()
    encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
    zapConfig := zap.Config{
        Level:             atomicLevel,
        Development:       false,
        DisableStacktrace: true,
        Sampling: &zap.SamplingConfig{
            Initial:    100,
            Thereafter: 100,
        },
        Encoding:         "json",
        EncoderConfig:    encoderConfig,
        OutputPaths:      []string{"stderr"},
        ErrorOutputPaths: []string{"stderr"},
    }
    return zapConfig.Build()
}

func newMongoClient(cfg config.MongoDBConfig) (*mongo.Client, error) {
    // Use the SetServerAPIOptions() method to set the Stable API version to 1
    serverAPI := options.ServerAPI(options.ServerAPIVersion1)
    opts := options.Client().SetServerAPIOptions(serverAPI)

    if cfg.URI != "" {
        opts.ApplyURI(cfg.URI)
    } else {
        opts.SetHosts([]string{fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)})
        if cfg.Username != "" {
            opts.SetAuth(options.Credential{
                AuthMechanism: cfg.Mechanism,
                AuthSource:    cfg.AuthDB,
                Username:      cfg.Username,
                Password:      cfg.Password,
            })
        }
        if cfg.UseTLS {
            opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
        }
    }

    return mongo.Connect(opts)
}

func createEventsMessageProcessor(app *App, repository events.Repository) (*messages.Processor[events.Handler], error) {
    wsConfig := app.webSocketConfig
    client, err := websocket.NewClient(
        websocket.WithURL(wsConfig.URL),
        websocket.WithDebugMode(wsConfig.DebugMode),
        websocket.WithSendDelay(wsConfig.SendDelay),
        websocket.WithMinReconnectInterval(wsConfig.MinReconnectInterval),
        websocket.WithMaxReconnectInterval(wsConfig.MaxReconnectInterval),
        websocket.WithDialer(&gorillaws.Dialer{
            Proxy:            http.ProxyFromEnvironment,
            HandshakeTimeout: wsConfig.HandshakeTimeout,
        }),
        websocket.WithLogger(app.logger.With(logattr.Component("websocket.Client"))),
    )
    if err != nil {
        return nil, fmt.Errorf("creating websocket client: %w", err)
    }

    app.pipeline = wsadapter.NewPipeline(
        client,
        wsConfig.JoinTopic,
        app.logger.With(logattr.Component("websocket.Pipeline")),
        app.metrics,
    )

    eventsHandler := events.NewEventsHandler(
        repository,
        wsConfig.URL,
        app.logger.With(logattr.Component("events.EventsHandler")),
    )

    eventsMessageProcessor := messages.NewProcessor[events.Handler](
        app.pipeline,
        events.NewDeserializer(app.logger.With(logattr.Component("events.Deserializer"))),
        eventsHandler,
        withErrorCallback(
            app.logger.With(logattr.Component("websocket.MessageProcessor")),
            app.metrics,
        ),
        messages.WithProcessingTimeout(messageProcessingTimeout),
    )

    return eventsMessageProcessor, nil
}

func withErrorCallback(logger *slog.Logger, metrics *metrics.Metrics) messages.ProcessorOpt {
    return messages.WithErrorCallback(func(wError werrors.WError) {
        metrics.MessagesDropped.Inc()
        logger.Error(
            "failed processing message",
            logattr.Error(wError.Message()))
    })
}

func (app *App) startPublicAPIHTTPServer(repository events.Repository) (*http.Server, error) {
    handler := public.NewHandler(
        events.NewService(repository),
        app.logger.With(logattr.Component("http.PublicAPIHandler")),
    )

    httpServer := &http.Server{
        Addr:              fmt.Sprintf("0.0.0.0:%d", app.publicAPIConfig.Value.PublicAPIHttpServerPort),
        Handler:           public.NewRouter(handler, app.metricsRegistry),
        ReadHeaderTimeout: 10 * time.Second,
    }

    go func() {
        defer app.logger.Info("http server stopped")
        if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            app.logger.Error("http server error", logattr.Error(err.Error()))
        }
    }()

    app.logger.Info("http server started", slog.String("addr", httpServer.Addr))

    return httpServer, nil
}
