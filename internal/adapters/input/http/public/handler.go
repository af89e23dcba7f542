package public

import (
    "context"
    "encoding/json"
    "log/slog"
    "net/http"
    "strconv"

    "machine-stream/internal/domain/events"
    "machine-stream/pkg/logattr"

    "github.com/gorilla/mux"
    "github.com/walletera/werrors"
)

const (
    filtersNotFoundMessage   = "There aren't events for the specified filters"
    idNotFoundMessage        = "The event for the specified id is not found or is been deleted"
    machineIDNotFoundMessage = "The event for the specified machine_id is not found or is been deleted"
    noEventsMessage          = "There are no events or the events are deleted"

    filtersErrorMessage    = "The fetch of data by filters caused and error or the service is currently unavailable"
    idErrorMessage         = "The fetch of data by id caused and error or the service is currently unavailable"
    machineIDErrorMessage  = "The fetch of data by machine_id caused and error or the service is currently unavailable"
    lastEventsErrorMessage = "The fetch of last events caused and error or the service is currently unavailable"
)

type EventsService interface {
    GetByID(ctx context.Context, id string) (*events.Envelope, werrors.WError)
    GetByMachineID(ctx context.Context, machineID string, limit int) ([]events.Envelope, werrors.WError)
    GetByStatus(ctx context.Context, status string, limit int) ([]events.Envelope, werrors.WError)
    GetMostRecent(ctx context.Context, limit int) ([]events.Envelope, werrors.WError)
    GetByFilters(ctx context.Context, rawFilters map[string]string) ([]events.Envelope, werrors.WError)
}

type BadRequestResponse struct {
    CallParams any      `json:"callParams"`
    Reasons    []string `json:"reasons"`
}

type NotFoundResponse struct {
    CallParams any      `json:"callParams,omitempty"`
    Messages   []string `json:"messages"`
}

type ServerErrorResponse struct {
    CallParams any      `json:"callParams,omitempty"`
    Errors     []string `json:"errors"`
}

type Handler struct {
    service EventsService
    logger  *slog.Logger
}

func NewHandler(service EventsService, logger *slog.Logger) *Handler {
    return &Handler{service: service, logger: logger}
}

// Register mounts the events endpoints under /v1/events.
func (h *Handler) Register(router *mux.Router) {
    r := router.PathPrefix("/v1/events").Subrouter()
    r.HandleFunc("/GetFilterSpecs", h.GetFilterSpecs).Methods(http.MethodGet)
    r.HandleFunc("/GetByFilters", h.GetByFilters).Methods(http.MethodGet)
    r.HandleFunc("/GetById/{id}", h.GetByID).Methods(http.MethodGet)
    r.HandleFunc("/GetByMachineId/{machine_id}", h.GetByMachineID).Methods(http.MethodGet)
    r.HandleFunc("/GetByStatus/{status}", h.GetByStatus).Methods(http.MethodGet)
    r.HandleFunc("/GetLastEvents", h.GetLastEvents).Methods(http.MethodGet)
}

func (h *Handler) GetFilterSpecs(w http.ResponseWriter, _ *http.Request) {
    writeJSON(w, http.StatusOK, events.ListFilters())
}

func (h *Handler) GetByFilters(w http.ResponseWriter, r *http.Request) {
    filters := make(map[string]string)
    for name, values := range r.URL.Query() {
        if len(values) > 0 {
            filters[name] = values[0]
        }
    }

    reasons := events.ValidateFilters(filters)
    if len(reasons) > 0 {
        writeJSON(w, http.StatusBadRequest, BadRequestResponse{CallParams: filters, Reasons: reasons})
        return
    }

    envelopes, err := h.service.GetByFilters(r.Context(), filters)
    if err != nil {
        h.logger.Error("failed getting events by filters", logattr.Filters(filters), logattr.Error(err.Error()))
        writeJSON(w, http.StatusServiceUnavailable, ServerErrorResponse{CallParams: filters, Errors: []string{filtersErrorMessage}})
        return
    }
    h.writeEvents(w, envelopes, filters, filtersNotFoundMessage)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
    id := mux.Vars(r)["id"]
    envelope, err := h.service.GetByID(r.Context(), id)
    if err != nil {
        h.logger.Error("failed getting event by id", logattr.EventId(id), logattr.Error(err.Error()))
        writeJSON(w, http.StatusServiceUnavailable, ServerErrorResponse{CallParams: id, Errors: []string{idErrorMessage}})
        return
    }
    if envelope == nil {
        writeJSON(w, http.StatusNotFound, NotFoundResponse{CallParams: id, Messages: []string{idNotFoundMessage}})
        return
    }
    writeJSON(w, http.StatusOK, envelope.StreamEvent)
}

func (h *Handler) GetByMachineID(w http.ResponseWriter, r *http.Request) {
    machineID := mux.Vars(r)["machine_id"]
    limit, ok := h.parseLimit(w, r, machineID)
    if !ok {
        return
    }
    envelopes, err := h.service.GetByMachineID(r.Context(), machineID, limit)
    if err != nil {
        h.logger.Error("failed getting events by machine id", logattr.MachineId(machineID), logattr.Error(err.Error()))
        writeJSON(w, http.StatusServiceUnavailable, ServerErrorResponse{CallParams: machineID, Errors: []string{machineIDErrorMessage}})
        return
    }
    h.writeEvents(w, envelopes, machineID, machineIDNotFoundMessage)
}

func (h *Handler) GetByStatus(w http.ResponseWriter, r *http.Request) {
    status := mux.Vars(r)["status"]
    limit, ok := h.parseLimit(w, r, status)
    if !ok {
        return
    }
    envelopes, err := h.service.GetByStatus(r.Context(), status, limit)
    if err != nil {
        h.logger.Error("failed getting events by status", logattr.EventStatus(status), logattr.Error(err.Error()))
        writeJSON(w, http.StatusServiceUnavailable, ServerErrorResponse{Errors: []string{lastEventsErrorMessage}})
        return
    }
    h.writeEvents(w, envelopes, nil, noEventsMessage)
}

func (h *Handler) GetLastEvents(w http.ResponseWriter, r *http.Request) {
    limit, ok := h.parseLimit(w, r, nil)
    if !ok {
        return
    }
    envelopes, err := h.service.GetMostRecent(r.Context(), limit)
    if err != nil {
        h.logger.Error("failed getting last events", logattr.Limit(limit), logattr.Error(err.Error()))
        writeJSON(w, http.StatusServiceUnavailable, ServerErrorResponse{Errors: []string{lastEventsErrorMessage}})
        return
    }
    h.writeEvents(w, envelopes, nil, noEventsMessage)
}

// parseLimit reads the optional limit query parameter, writing a 400 when it is not an integer.
func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request, callParams any) (int, bool) {
    raw := r.URL.Query().Get(events.FilterLimit)
    if raw == "" {
        return events.DefaultLimit, true
    }
    limit, err := strconv.Atoi(raw)
    if err != nil {
        writeJSON(w, http.StatusBadRequest, BadRequestResponse{CallParams: callParams, Reasons: []string{events.InvalidLimitReason}})
        return 0, false
    }
    return limit, true
}

func (h *Handler) writeEvents(w http.ResponseWriter, envelopes []events.Envelope, callParams any, notFoundMessage string) {
    if len(envelopes) == 0 {
        writeJSON(w, http.StatusNotFound, NotFoundResponse{CallParams: callParams, Messages: []string{notFoundMessage}})
        return
    }
    streamEvents := make([]events.StreamEvent, 0, len(envelopes))
    for _, envelope := range envelopes {
        streamEvents = append(streamEvents, envelope.StreamEvent)
    }
    writeJSON(w, http.StatusOK, streamEvents)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(body)
}
