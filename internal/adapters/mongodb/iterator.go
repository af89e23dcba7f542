package mongodb

import (
    "context"

    "machine-stream/internal/domain/events"

    "go.mongodb.org/mongo-driver/v2/mongo"
)

type Iterator struct {
    cursor *mongo.Cursor
}

func (m *Iterator) Next(ctx context.Context) (bool, events.Envelope, error) {
    if !m.cursor.Next(ctx) {
        if err := m.cursor.Err(); err != nil {
            return false, events.Envelope{}, err
        }
        return false, events.Envelope{}, nil
    }

    var envelopeBSON EnvelopeBSON
    if err := m.cursor.Decode(&envelopeBSON); err != nil {
        return false, events.Envelope{}, err
    }

    envelope, err := fromEnvelopeBSON(envelopeBSON)
    if err != nil {
        return false, events.Envelope{}, err
    }
    return true, envelope, nil
}

func (m *Iterator) Close(ctx context.Context) error {
    return m.cursor.Close(ctx)
}
