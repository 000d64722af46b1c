package session

import (
	"context"
	"time"

	"github.com/sadopc/punchclock/internal/store"
)

// PeriodStore is the durable side of a session.
type PeriodStore interface {
	UpsertPeriod(ctx context.Context, p *store.TrackedPeriod) error
	GetOpenPeriod(ctx context.Context, userID int64) (*store.TrackedPeriod, error)
	AddImage(ctx context.Context, img *store.Image) error
}

var _ PeriodStore = (*store.Store)(nil)

type LocationPort interface {
	CurrentLocation(ctx context.Context) (store.Location, error)
}

// AuthPort gates Stop. When Available reports false, Stop proceeds unconditionally.
type AuthPort interface {
	Available(ctx context.Context) bool
	Authenticate(ctx context.Context, prompt string) (bool, error)
}

// NotificationPort receives the open period's total elapsed time once per
// notify interval. Push must not block for long.
type NotificationPort interface {
	Push(elapsed time.Duration)
}

// PhotoPort captures an image. An empty result means the user cancelled.
type PhotoPort interface {
	Capture(ctx context.Context) ([]byte, error)
}
