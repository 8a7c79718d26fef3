package events

import (
	"context"
	"time"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

// LifecycleEvent is published after a status change has been stored.
type LifecycleEvent struct {
	DeliveryID int64         `json:"delivery_id"`
	Event      domain.Event  `json:"event"`
	Status     domain.Status `json:"status"`
	ActorID    int64         `json:"actor_id"`
	DriverID   *int64        `json:"driver_id,omitempty"`
	At         time.Time     `json:"at"`
}

// Publisher fans lifecycle events out to external consumers. Delivery is
// best effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev LifecycleEvent) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, LifecycleEvent) error { return nil }
func (Noop) Close() error                                  { return nil }
