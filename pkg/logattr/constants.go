package logattr

import "log/slog"

func ServiceName(serviceName string) slog.Attr {
    return slog.String("service_name", serviceName)
}

func Component(component string) slog.Attr {
    return slog.String("component", component)
}

func EventId(eventId string) slog.Attr {
    return slog.String("event_id", eventId)
}

func MachineId(machineId string) slog.Attr {
    return slog.String("machine_id", machineId)
}

func EventStatus(status string) slog.Attr {
    return slog.String("event_status", status)
}

func EventType(eventType string) slog.Attr {
    return slog.String("event_type", eventType)
}

func Error(err string) slog.Attr {
    return slog.String("error", err)
}

func Source(source string) slog.Attr {
    return slog.String("source", source)
}

func Filters(filters any) slog.Attr {
    return slog.Any("filters", filters)
}

func Sort(sort any) slog.Attr {
    return slog.Any("sort", sort)
}

func Limit(limit int) slog.Attr {
    return slog.Int("limit", limit)
}

func URL(url string) slog.Attr {
    return slog.String("url", url)
}

func ConnectionState(state string) slog.Attr {
    return slog.String("connection_state", state)
}

func PreviousConnectionState(state string) slog.Attr {
    return slog.String("previous_connection_state", state)
}

func CloseCode(code int) slog.Attr {
    return slog.Int("close_code", code)
}

func Message(message string) slog.Attr {
    return slog.String("message", message)
}
