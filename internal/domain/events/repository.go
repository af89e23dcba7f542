package events

import (
    "context"

    "github.com/walletera/werrors"
)

type Repository interface {
    // Insert stores the envelope and reports whether it was written.
    // Failures are handled by the implementation and never returned.
    Insert(ctx context.Context, envelope Envelope) bool
    Find(ctx context.Context, query Query) ([]Envelope, werrors.WError)
}
