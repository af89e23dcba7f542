package events

import (
    "context"
    "log/slog"

    "machine-stream/pkg/logattr"

    "github.com/walletera/werrors"
)

type Handler interface {
    HandleStreamEvent(ctx context.Context, streamEvent StreamEvent) werrors.WError
}

// EventsHandler stores every received stream event. Writes are at-most-once:
// a failed insert is logged by the repository and the event is dropped.
type EventsHandler struct {
    repository Repository
    source     string
    logger     *slog.Logger
}

var _ Handler = (*EventsHandler)(nil)

func NewEventsHandler(repository Repository, source string, logger *slog.Logger) *EventsHandler {
    return &EventsHandler{
        repository: repository,
        source:     source,
        logger:     logger,
    }
}

func (e *EventsHandler) HandleStreamEvent(ctx context.Context, streamEvent StreamEvent) werrors.WError {
    envelope := NewEnvelope(streamEvent, e.source)
    // the write outlives the message processing context, shutdown does not cancel it
    stored := e.repository.Insert(context.WithoutCancel(ctx), envelope)
    if !stored {
        e.logger.Warn(
            "stream event dropped",
            logattr.Source(e.source),
            logattr.EventId(streamEvent.Payload.ID),
            logattr.MachineId(streamEvent.Payload.MachineID),
        )
        return nil
    }
    e.logger.Info(
        "stream event stored",
        logattr.Source(e.source),
        logattr.EventId(streamEvent.Payload.ID),
        logattr.MachineId(streamEvent.Payload.MachineID),
        logattr.EventStatus(streamEvent.Payload.Status),
    )
    return nil
}
