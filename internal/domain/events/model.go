package events

import (
    "encoding/json"
    "log/slog"
    "time"
)

// TimestampLayout is the layout producers are expected to use for Payload.Timestamp.
// Timestamps are compared as strings, so every producer must use the same zero-padded layout.
const TimestampLayout = "2006-01-02T15:04:05.0000000Z07:00"

// DefaultCreator is the audit value used when an envelope is created without an explicit source.
const DefaultCreator = "backend"

type Status string

const (
    StatusIdle     Status = "idle"
    StatusRunning  Status = "running"
    StatusFinished Status = "finished"
    StatusErrorred Status = "errorred"
    StatusRepaired Status = "repaired"
)

var statuses = []Status{StatusIdle, StatusRunning, StatusFinished, StatusErrorred, StatusRepaired}

// Statuses returns the closed vocabulary of machine statuses.
func Statuses() []string {
    values := make([]string, len(statuses))
    for i, status := range statuses {
        values[i] = string(status)
    }
    return values
}

func IsValidStatus(status string) bool {
    for _, s := range statuses {
        if string(s) == status {
            return true
        }
    }
    return false
}

func FormatTimestamp(t time.Time) string {
    return t.UTC().Format(TimestampLayout)
}

// StreamEvent is a machine status message as delivered by the feed.
// Unknown keys are kept in Extra and written back on encode.
type StreamEvent struct {
    Topic   string
    Ref     *string
    Payload Payload
    JoinRef *string
    Event   string
    Extra   map[string]json.RawMessage
}

type Payload struct {
    ID        string
    MachineID string
    Timestamp string
    Status    string
    Extra     map[string]json.RawMessage
}

type streamEventJSON struct {
    Topic   string  `json:"topic"`
    Ref     *string `json:"ref"`
    Payload Payload `json:"payload"`
    JoinRef *string `json:"join_ref"`
    Event   string  `json:"event"`
}

var streamEventKeys = []string{"topic", "ref", "payload", "join_ref", "event"}

type payloadJSON struct {
    Timestamp string `json:"timestamp"`
    Status    string `json:"status"`
    MachineID string `json:"machine_id"`
    ID        string `json:"id"`
}

var payloadKeys = []string{"timestamp", "status", "machine_id", "id"}

func (e StreamEvent) MarshalJSON() ([]byte, error) {
    return marshalWithExtra(streamEventJSON{
        Topic:   e.Topic,
        Ref:     e.Ref,
        Payload: e.Payload,
        JoinRef: e.JoinRef,
        Event:   e.Event,
    }, e.Extra)
}

func (e *StreamEvent) UnmarshalJSON(data []byte) error {
    var known streamEventJSON
    if err := json.Unmarshal(data, &known); err != nil {
        return err
    }
    extra, err := extraFields(data, streamEventKeys)
    if err != nil {
        return err
    }
    *e = StreamEvent{
        Topic:   known.Topic,
        Ref:     known.Ref,
        Payload: known.Payload,
        JoinRef: known.JoinRef,
        Event:   known.Event,
        Extra:   extra,
    }
    return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
    return marshalWithExtra(payloadJSON{
        Timestamp: p.Timestamp,
        Status:    p.Status,
        MachineID: p.MachineID,
        ID:        p.ID,
    }, p.Extra)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
    var known payloadJSON
    if err := json.Unmarshal(data, &known); err != nil {
        return err
    }
    extra, err := extraFields(data, payloadKeys)
    if err != nil {
        return err
    }
    *p = Payload{
        ID:        known.ID,
        MachineID: known.MachineID,
        Timestamp: known.Timestamp,
        Status:    known.Status,
        Extra:     extra,
    }
    return nil
}

func marshalWithExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
    data, err := json.Marshal(known)
    if err != nil || len(extra) == 0 {
        return data, err
    }
    fields := make(map[string]json.RawMessage, len(extra)+len(streamEventKeys))
    if err := json.Unmarshal(data, &fields); err != nil {
        return nil, err
    }
    for key, value := range extra {
        // known keys always win over a stale extra entry
        if _, found := fields[key]; !found {
            fields[key] = value
        }
    }
    return json.Marshal(fields)
}

func extraFields(data []byte, knownKeys []string) (map[string]json.RawMessage, error) {
    var fields map[string]json.RawMessage
    if err := json.Unmarshal(data, &fields); err != nil {
        return nil, err
    }
    for _, key := range knownKeys {
        delete(fields, key)
    }
    if len(fields) == 0 {
        return nil, nil
    }
    return fields, nil
}

// Envelope is the persisted unit: one stream event plus audit fields.
// Envelopes are never removed, IsDeleted hides them from every read.
type Envelope struct {
    StreamEvent StreamEvent
    CreatedBy   string
    CreatedAt   time.Time
    UpdatedBy   string
    UpdatedAt   time.Time
    IsDeleted   bool
}

func NewEnvelope(streamEvent StreamEvent, createdBy string) Envelope {
    if createdBy == "" {
        createdBy = DefaultCreator
    }
    now := time.Now().UTC()
    return Envelope{
        StreamEvent: streamEvent,
        CreatedBy:   createdBy,
        CreatedAt:   now,
        UpdatedBy:   createdBy,
        UpdatedAt:   now,
        IsDeleted:   false,
    }
}

func (e Envelope) LogValue() slog.Value {
    return slog.GroupValue(
        slog.String("machine_id", e.StreamEvent.Payload.MachineID),
        slog.String("event_id", e.StreamEvent.Payload.ID),
        slog.Time("updated_at", e.UpdatedAt),
        slog.String("updated_by", e.UpdatedBy),
    )
}
