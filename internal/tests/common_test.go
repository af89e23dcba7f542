package tests

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log/slog"
    "net/http"
    "time"

    "machine-stream/internal/app"
    "machine-stream/internal/config"

    "github.com/cucumber/godog"
    slogwatcher "github.com/walletera/logs-watcher/slog"
    "go.mongodb.org/mongo-driver/v2/bson"
    "go.mongodb.org/mongo-driver/v2/mongo"
    "go.mongodb.org/mongo-driver/v2/mongo/options"
    "go.uber.org/zap"
    "go.uber.org/zap/exp/zapslog"
    "go.uber.org/zap/zapcore"
)

type ctxKey string

const (
    appKey              ctxKey = "app"
    appCtxCancelFuncKey ctxKey = "appCtxCancelFunc"
    logsWatcherKey      ctxKey = "logsWatcher"
    feedKey             ctxKey = "feed"
    responseKey         ctxKey = "response"

    logsWatcherWaitForTimeout = 5 * time.Second
    publicApiHttpServerPort   = 8484
    mongodbURL                = "mongodb://localhost:27017/?retryWrites=true&w=majority"
    databaseName              = "machine_stream_tests"
    collectionName            = "events"
)

var mongodbClient *mongo.Client

type httpResponse struct {
    statusCode int
    body       []byte
}

func beforeScenarioHook(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
    handler, err := newZapHandler()
    if err != nil {
        return ctx, err
    }
    logsWatcher := slogwatcher.NewWatcher(handler)
    ctx = context.WithValue(ctx, logsWatcherKey, logsWatcher)

    client, err := getMongodbClient()
    if err != nil {
        return ctx, err
    }

    // cleanup database before each scenario
    err = client.Database(databaseName).Collection(collectionName).Drop(ctx)
    if err != nil {
        return nil, err
    }

    return ctx, nil
}

func afterScenarioHook(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
    logsWatcher := logsWatcherFromCtx(ctx)

    if value := ctx.Value(appKey); value != nil {
        appFromCtx(ctx).Stop(ctx)
        foundLogEntry := logsWatcher.WaitFor("machine-stream stopped", logsWatcherWaitForTimeout)
        if !foundLogEntry {
            return ctx, fmt.Errorf("app termination failed (didn't find expected log entry)")
        }
        ctx.Value(appCtxCancelFuncKey).(context.CancelFunc)()
    }
    if feed, ok := ctx.Value(feedKey).(*fakeFeed); ok {
        feed.Close()
    }

    err = logsWatcher.Stop()
    if err != nil {
        return ctx, fmt.Errorf("failed stopping the logsWatcher: %w", err)
    }

    return ctx, nil
}

func aRunningMachineStream(ctx context.Context) (context.Context, error) {
    logHandler := logsWatcherFromCtx(ctx).DecoratedHandler()

    feed := newFakeFeed()
    ctx = context.WithValue(ctx, feedKey, feed)

    appCtx, appCtxCancelFunc := context.WithCancel(ctx)

    machineStreamApp, err := app.NewApp(
        app.WithPublicAPIConfig(app.PublicAPIConfig{
            PublicAPIHttpServerPort: publicApiHttpServerPort,
        }),
        app.WithMongoDBConfig(config.MongoDBConfig{
            URI:        mongodbURL,
            Database:   databaseName,
            Collection: collectionName,
        }),
        app.WithWebSocketConfig(config.WebSocketConfig{
            URL:                  feed.URL(),
            MinReconnectInterval: 100 * time.Millisecond,
            MaxReconnectInterval: time.Second,
        }),
        app.WithLogHandler(logHandler),
    )
    if err != nil {
        appCtxCancelFunc()
        return ctx, fmt.Errorf("failed initializing machine-stream: %w", err)
    }

    err = machineStreamApp.Run(appCtx)
    if err != nil {
        appCtxCancelFunc()
        return ctx, fmt.Errorf("failed running machine-stream: %w", err)
    }

    ctx = context.WithValue(ctx, appKey, machineStreamApp)
    ctx = context.WithValue(ctx, appCtxCancelFuncKey, appCtxCancelFunc)

    foundLogEntry := logsWatcherFromCtx(ctx).WaitFor("machine-stream started", logsWatcherWaitForTimeout)
    if !foundLogEntry {
        return ctx, fmt.Errorf("machine-stream startup failed (didn't find expected log entry)")
    }
    foundLogEntry = logsWatcherFromCtx(ctx).WaitFor("websocket connection opened", logsWatcherWaitForTimeout)
    if !foundLogEntry {
        return ctx, fmt.Errorf("machine-stream did not connect to the feed")
    }

    return ctx, nil
}

func theMachineStreamReceivesAGETRequestOn(ctx context.Context, path string) (context.Context, error) {
    url := fmt.Sprintf("http://127.0.0.1:%d%s", publicApiHttpServerPort, path)
    resp, err := http.Get(url)
    if err != nil {
        return ctx, fmt.Errorf("failed to send request: %w", err)
    }
    defer resp.Body.Close()

    body, err := io.ReadAll(resp.Body)
    if err != nil {
        return ctx, fmt.Errorf("failed to read response body: %w", err)
    }

    return context.WithValue(ctx, responseKey, httpResponse{statusCode: resp.StatusCode, body: body}), nil
}

func theResponseStatusCodeIs(ctx context.Context, statusCode int) error {
    response := responseFromCtx(ctx)
    if response.statusCode != statusCode {
        return fmt.Errorf("expected status code %d but got %d: %s", statusCode, response.statusCode, response.body)
    }
    return nil
}

func theResponseContainsNEvents(ctx context.Context, count int) error {
    response := responseFromCtx(ctx)
    var streamEvents []json.RawMessage
    err := json.Unmarshal(response.body, &streamEvents)
    if err != nil {
        return fmt.Errorf("response is not a list of events: %w", err)
    }
    if len(streamEvents) != count {
        return fmt.Errorf("expected %d events but got %d", count, len(streamEvents))
    }
    return nil
}

func theEventsCollectionContainsNEvents(ctx context.Context, count int) error {
    client, err := getMongodbClient()
    if err != nil {
        return err
    }
    stored, err := client.Database(databaseName).Collection(collectionName).CountDocuments(ctx, bson.D{})
    if err != nil {
        return fmt.Errorf("failed counting events: %w", err)
    }
    if stored != int64(count) {
        return fmt.Errorf("expected %d stored events but found %d", count, stored)
    }
    return nil
}

func logsWatcherFromCtx(ctx context.Context) *slogwatcher.Watcher {
    value := ctx.Value(logsWatcherKey)
    if value == nil {
        panic("logs watcher not found in context")
    }
    watcher, ok := value.(*slogwatcher.Watcher)
    if !ok {
        panic("logs watcher has invalid type")
    }
    return watcher
}

func appFromCtx(ctx context.Context) *app.App {
    value := ctx.Value(appKey)
    if value == nil {
        panic("machine-stream app not found in context")
    }
    machineStreamApp, ok := value.(*app.App)
    if !ok {
        panic("machine-stream app has invalid type")
    }
    return machineStreamApp
}

func feedFromCtx(ctx context.Context) *fakeFeed {
    value := ctx.Value(feedKey)
    if value == nil {
        panic("feed not found in context")
    }
    feed, ok := value.(*fakeFeed)
    if !ok {
        panic("feed has invalid type")
    }
    return feed
}

func responseFromCtx(ctx context.Context) httpResponse {
    value := ctx.Value(responseKey)
    if value == nil {
        panic("response not found in context")
    }
    response, ok := value.(httpResponse)
    if !ok {
        panic("response has invalid type")
    }
    return response
}

func newZapHandler() (slog.Handler, error) {
    encoderConfig := zap.NewProductionEncoderConfig()
    encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
    zapConfig := zap.Config{
        Level:             zap.NewAtomicLevelAt(zap.DebugLevel),
        Development:       false,
        DisableStacktrace: true,
        Encoding:          "json",
        EncoderConfig:     encoderConfig,
        OutputPaths:       []string{"stderr"},
        ErrorOutputPaths:  []string{"stderr"},
    }
    zapLogger, err := zapConfig.Build()
    if err != nil {
        return nil, err
    }
    if zapLogger.Core() == nil {
        return nil, fmt.Errorf("zapLogger.Core() is nil")
    }
    return zapslog.NewHandler(zapLogger.Core()), nil
}

func getMongodbClient() (*mongo.Client, error) {
    if mongodbClient != nil {
        return mongodbClient, nil
    }

    // Use the SetServerAPIOptions() method to set the Stable API version to 1
    serverAPI := options.ServerAPI(options.ServerAPIVersion1)
    opts := options.Client().ApplyURI(mongodbURL).SetServerAPIOptions(serverAPI)

    client, err := mongo.Connect(opts)
    if err != nil {
        return nil, err
    }
    mongodbClient = client

    return mongodbClient, nil
}
