package events

import (
    "context"

    "github.com/walletera/werrors"
)

// Service answers read requests over stored envelopes. Soft-deleted envelopes
// are never returned and an empty result is not an error.
type Service struct {
    repository Repository
}

func NewService(repository Repository) *Service {
    return &Service{repository: repository}
}

// GetByID returns nil when no live envelope carries the given event id.
func (s *Service) GetByID(ctx context.Context, id string) (*Envelope, werrors.WError) {
    envelopes, werr := s.repository.Find(ctx, byIDQuery(id))
    if werr != nil {
        return nil, werr
    }
    if len(envelopes) == 0 {
        return nil, nil
    }
    return &envelopes[0], nil
}

func (s *Service) GetByMachineID(ctx context.Context, machineID string, limit int) ([]Envelope, werrors.WError) {
    return s.repository.Find(ctx, byMachineIDQuery(machineID, limit))
}

func (s *Service) GetByStatus(ctx context.Context, status string, limit int) ([]Envelope, werrors.WError) {
    return s.repository.Find(ctx, byStatusQuery(status, limit))
}

func (s *Service) GetMostRecent(ctx context.Context, limit int) ([]Envelope, werrors.WError) {
    return s.repository.Find(ctx, mostRecentQuery(limit))
}

// GetByFilters does not validate rawFilters, callers run ValidateFilters first.
func (s *Service) GetByFilters(ctx context.Context, rawFilters map[string]string) ([]Envelope, werrors.WError) {
    return s.repository.Find(ctx, BuildQuery(rawFilters))
}
