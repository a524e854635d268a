package interfaces

import (
	"context"

	"github.com/ternarybob/vantage/internal/models"
)

// EventHandler is a function that handles lifecycle events
type EventHandler func(ctx context.Context, event models.LifecycleEvent) error

// EventService manages the lifecycle pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType models.LifecycleEventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event models.LifecycleEvent) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event models.LifecycleEvent) error

	// Close shuts down the event service
	Close() error
}
