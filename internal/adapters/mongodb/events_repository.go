package mongodb

import (
    "context"
    "log/slog"
    "time"

    "machine-stream/internal/domain/events"
    "machine-stream/internal/metrics"
    "machine-stream/pkg/logattr"

    "github.com/walletera/werrors"
    "go.mongodb.org/mongo-driver/v2/bson"
    "go.mongodb.org/mongo-driver/v2/mongo"
    "go.mongodb.org/mongo-driver/v2/mongo/options"
)

type EventsRepository struct {
    client         *mongo.Client
    dbName         string
    collectionName string
    logger         *slog.Logger
    metrics        *metrics.Metrics
}

var _ events.Repository = (*EventsRepository)(nil)

func NewEventsRepository(client *mongo.Client, dbName string, collectionName string, logger *slog.Logger, metrics *metrics.Metrics) *EventsRepository {
    return &EventsRepository{
        client:         client,
        dbName:         dbName,
        collectionName: collectionName,
        logger:         logger,
        metrics:        metrics,
    }
}

func (r *EventsRepository) Insert(ctx context.Context, envelope events.Envelope) bool {
    r.logger.Debug("inserting event", slog.Any("envelope", envelope))

    envelopeBSON, err := toEnvelopeBSON(envelope)
    if err != nil {
        r.logger.Error(
            "failed inserting event",
            logattr.Error(err.Error()),
            slog.Any("envelope", envelope),
        )
        r.metrics.EventsInserted.WithLabelValues(metrics.ResultFailure).Inc()
        return false
    }

    _, err = r.collection().InsertOne(ctx, envelopeBSON)
    if err != nil {
        r.logger.Error(
            "failed inserting event",
            logattr.Error(err.Error()),
            slog.Any("envelope", envelope),
        )
        r.metrics.EventsInserted.WithLabelValues(metrics.ResultFailure).Inc()
        return false
    }

    r.metrics.EventsInserted.WithLabelValues(metrics.ResultSuccess).Inc()
    return true
}

func (r *EventsRepository) Find(ctx context.Context, query events.Query) ([]events.Envelope, werrors.WError) {
    limit := query.Limit
    if limit <= 0 {
        limit = events.DefaultLimit
    }

    filter, err := toBSONFilter(query.Predicate)
    if err != nil {
        r.logger.Error("failed building events filter", logattr.Error(err.Error()))
        return nil, werrors.NewNonRetryableInternalError("failed building events filter: %s", err.Error())
    }

    findOpts := options.Find().SetLimit(int64(limit))
    var sort bson.D
    if query.Sort != nil {
        sort, err = toBSONSort(*query.Sort)
        if err != nil {
            r.logger.Error("failed building events sort", logattr.Error(err.Error()))
            return nil, werrors.NewNonRetryableInternalError("failed building events sort: %s", err.Error())
        }
        findOpts.SetSort(sort)
    }

    r.logger.Debug("finding events", logattr.Filters(filter), logattr.Sort(sort), logattr.Limit(limit))

    start := time.Now()
    defer func() {
        r.metrics.FindDuration.Observe(time.Since(start).Seconds())
    }()

    cursor, err := r.collection().Find(ctx, filter, findOpts)
    if err != nil {
        return nil, r.findFailed(err, filter, sort, limit)
    }

    iterator := &Iterator{cursor: cursor}
    defer iterator.Close(ctx)

    envelopes := make([]events.Envelope, 0)
    for {
        ok, envelope, err := iterator.Next(ctx)
        if err != nil {
            return nil, r.findFailed(err, filter, sort, limit)
        }
        if !ok {
            break
        }
        envelopes = append(envelopes, envelope)
    }
    return envelopes, nil
}

func (r *EventsRepository) findFailed(err error, filter bson.D, sort bson.D, limit int) werrors.WError {
    r.logger.Error(
        "failed finding events",
        logattr.Error(err.Error()),
        logattr.Filters(filter),
        logattr.Sort(sort),
        logattr.Limit(limit),
    )
    r.metrics.FindErrors.Inc()
    return werrors.NewRetryableInternalError("failed to find events: %s", err.Error())
}

func (r *EventsRepository) collection() *mongo.Collection {
    return r.client.Database(r.dbName).Collection(r.collectionName)
}
