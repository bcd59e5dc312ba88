package engine

import (
	"context"
	"time"

	"github.com/nathoo/worldweaver/types"
)

// FragmentSource reads the authored fragments of a world.
type FragmentSource interface {
	Fragments(ctx context.Context) ([]types.Fragment, error)
}

// SessionStore persists per-session world state. Load methods report
// found=false, not an error, for an unknown session.
type SessionStore interface {
	SaveVariables(ctx context.Context, sessionID string, vars map[string]any) error
	LoadVariables(ctx context.Context, sessionID string) (vars map[string]any, found bool, err error)
	SaveSnapshot(ctx context.Context, snap types.Snapshot) error
	LoadSnapshot(ctx context.Context, sessionID string) (snap types.Snapshot, found bool, err error)
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}
