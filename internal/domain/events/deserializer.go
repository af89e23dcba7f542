package events

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "time"

    "machine-stream/pkg/logattr"

    eventskit "github.com/walletera/eventskit/events"
    "github.com/walletera/werrors"
)

const dataContentType = "application/json"

// StreamEventReceived is a stream event read from the feed, ready to be dispatched to a Handler.
type StreamEventReceived struct {
    StreamEvent StreamEvent
    receivedAt  time.Time
}

var _ eventskit.Event[Handler] = StreamEventReceived{}

func (s StreamEventReceived) ID() string {
    return s.StreamEvent.Payload.ID
}

func (s StreamEventReceived) Type() string {
    return s.StreamEvent.Event
}

func (s StreamEventReceived) AggregateVersion() uint64 {
    return 0
}

func (s StreamEventReceived) CorrelationID() string {
    if s.StreamEvent.Ref == nil {
        return ""
    }
    return *s.StreamEvent.Ref
}

func (s StreamEventReceived) DataContentType() string {
    return dataContentType
}

func (s StreamEventReceived) CreatedAt() time.Time {
    return s.receivedAt
}

func (s StreamEventReceived) Serialize() ([]byte, error) {
    return json.Marshal(s.StreamEvent)
}

func (s StreamEventReceived) Accept(ctx context.Context, handler Handler) werrors.WError {
    return handler.HandleStreamEvent(ctx, s.StreamEvent)
}

type Deserializer struct {
    logger *slog.Logger
}

var _ eventskit.Deserializer[Handler] = (*Deserializer)(nil)

func NewDeserializer(logger *slog.Logger) *Deserializer {
    return &Deserializer{logger: logger}
}

// Deserialize decodes a feed message. Unknown fields are kept, anything that is not a
// JSON object shaped like a stream event is rejected.
func (d *Deserializer) Deserialize(rawEvent []byte) (eventskit.Event[Handler], error) {
    trimmed := bytes.TrimSpace(rawEvent)
    if len(trimmed) == 0 || trimmed[0] != '{' {
        return nil, fmt.Errorf("stream event is not a json object")
    }
    var streamEvent StreamEvent
    err := json.Unmarshal(trimmed, &streamEvent)
    if err != nil {
        return nil, fmt.Errorf("failed unmarshalling stream event: %w", err)
    }
    d.logger.Debug(
        "stream event deserialized",
        logattr.EventId(streamEvent.Payload.ID),
        logattr.EventType(streamEvent.Event),
    )
    return StreamEventReceived{
        StreamEvent: streamEvent,
        receivedAt:  time.Now().UTC(),
    }, nil
}
