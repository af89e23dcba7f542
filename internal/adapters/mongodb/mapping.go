package mongodb

import (
    "fmt"
    "time"

    "machine-stream/internal/domain/events"

    "go.mongodb.org/mongo-driver/v2/bson"
)

type PayloadBSON struct {
    ID        string `bson:"id"`
    MachineID string `bson:"machine_id"`
    Timestamp string `bson:"timestamp"`
    Status    string `bson:"status"`
    Extra     bson.M `bson:",inline"`
}

type StreamEventBSON struct {
    Topic   string      `bson:"topic"`
    Ref     *string     `bson:"ref"`
    Payload PayloadBSON `bson:"payload"`
    JoinRef *string     `bson:"join_ref"`
    Event   string      `bson:"event"`
    Extra   bson.M      `bson:",inline"`
}

type EnvelopeBSON struct {
    ID          bson.ObjectID   `bson:"_id,omitempty"`
    StreamEvent StreamEventBSON `bson:"streamEvent"`
    CreatedBy   string          `bson:"createdBy"`
    CreatedAt   time.Time       `bson:"createdAt"`
    UpdatedBy   string          `bson:"updatedBy"`
    UpdatedAt   time.Time       `bson:"updatedAt"`
    IsDeleted   bool            `bson:"isDeleted"`
}

var fieldPaths = map[events.Field]string{
    events.FieldEventID:   "streamEvent.payload.id",
    events.FieldMachineID: "streamEvent.payload.machine_id",
    events.FieldStatus:    "streamEvent.payload.status",
    events.FieldTimestamp: "streamEvent.payload.timestamp",
    events.FieldDeleted:   "isDeleted",
}

func toEnvelopeBSON(envelope events.Envelope) (EnvelopeBSON, error) {
    streamEvent := envelope.StreamEvent
    eventExtra, err := toBSONExtra(streamEvent.Extra)
    if err != nil {
        return EnvelopeBSON{}, fmt.Errorf("failed converting stream event extra fields: %w", err)
    }
    payloadExtra, err := toBSONExtra(streamEvent.Payload.Extra)
    if err != nil {
        return EnvelopeBSON{}, fmt.Errorf("failed converting payload extra fields: %w", err)
    }
    return EnvelopeBSON{
        StreamEvent: StreamEventBSON{
            Topic: streamEvent.Topic,
            Ref:   streamEvent.Ref,
            Payload: PayloadBSON{
                ID:        streamEvent.Payload.ID,
                MachineID: streamEvent.Payload.MachineID,
                Timestamp: streamEvent.Payload.Timestamp,
                Status:    streamEvent.Payload.Status,
                Extra:     payloadExtra,
            },
            JoinRef: streamEvent.JoinRef,
            Event:   streamEvent.Event,
            Extra:   eventExtra,
        },
        CreatedBy: envelope.CreatedBy,
        CreatedAt: envelope.CreatedAt,
        UpdatedBy: envelope.UpdatedBy,
        UpdatedAt: envelope.UpdatedAt,
        IsDeleted: envelope.IsDeleted,
    }, nil
}

func fromEnvelopeBSON(envelopeBSON EnvelopeBSON) (events.Envelope, error) {
    streamEventBSON := envelopeBSON.StreamEvent
    eventExtra, err := fromBSONExtra(streamEventBSON.Extra)
    if err != nil {
        return events.Envelope{}, fmt.Errorf("failed converting stream event extra elements: %w", err)
    }
    payloadExtra, err := fromBSONExtra(streamEventBSON.Payload.Extra)
    if err != nil {
        return events.Envelope{}, fmt.Errorf("failed converting payload extra elements: %w", err)
    }
    return events.Envelope{
        StreamEvent: events.StreamEvent{
            Topic: streamEventBSON.Topic,
            Ref:   streamEventBSON.Ref,
            Payload: events.Payload{
                ID:        streamEventBSON.Payload.ID,
                MachineID: streamEventBSON.Payload.MachineID,
                Timestamp: streamEventBSON.Payload.Timestamp,
                Status:    streamEventBSON.Payload.Status,
                Extra:     payloadExtra,
            },
            JoinRef: streamEventBSON.JoinRef,
            Event:   streamEventBSON.Event,
            Extra:   eventExtra,
        },
        CreatedBy: envelopeBSON.CreatedBy,
        CreatedAt: envelopeBSON.CreatedAt,
        UpdatedBy: envelopeBSON.UpdatedBy,
        UpdatedAt: envelopeBSON.UpdatedAt,
        IsDeleted: envelopeBSON.IsDeleted,
    }, nil
}

func toBSONFilter(predicate events.Predicate) (bson.D, error) {
    if len(predicate) == 0 {
        return bson.D{}, nil
    }
    conditions := make(bson.A, 0, len(predicate))
    for _, condition := range predicate {
        path, found := fieldPaths[condition.Field]
        if !found {
            return nil, fmt.Errorf("unsupported field %q", condition.Field)
        }
        switch condition.Operator {
        case events.OpEq:
            conditions = append(conditions, bson.D{{Key: path, Value: condition.Value}})
        case events.OpIn:
            conditions = append(conditions, bson.D{{Key: path, Value: bson.D{{Key: "$in", Value: condition.Values}}}})
        case events.OpGte:
            conditions = append(conditions, bson.D{{Key: path, Value: bson.D{{Key: "$gte", Value: condition.Value}}}})
        case events.OpLte:
            conditions = append(conditions, bson.D{{Key: path, Value: bson.D{{Key: "$lte", Value: condition.Value}}}})
        default:
            return nil, fmt.Errorf("unsupported operator %s", condition.Operator)
        }
    }
    return bson.D{{Key: "$and", Value: conditions}}, nil
}

func toBSONSort(sort events.SortOrder) (bson.D, error) {
    path, found := fieldPaths[sort.Field]
    if !found {
        return nil, fmt.Errorf("unsupported sort field %q", sort.Field)
    }
    direction := 1
    if sort.Descending {
        direction = -1
    }
    return bson.D{{Key: path, Value: direction}}, nil
}
