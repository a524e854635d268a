package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs lifecycle events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event models.LifecycleEvent) error {
		logEvent := logger.Info()
		switch event.Type {
		case models.EventTestFail:
			logEvent = logger.Error()
		case models.EventTestRetry, models.EventTestSkip:
			logEvent = logger.Warn()
		case models.EventTestStep, models.EventTestScreenshot:
			logEvent = logger.Debug()
		}

		logEvent = logEvent.
			Str("event_type", string(event.Type)).
			Str("test_name", event.TestName)

		if event.WorkerID != "" {
			logEvent = logEvent.Str("worker_id", event.WorkerID)
		}
		if event.Attempt > 0 {
			logEvent = logEvent.Int("attempt", event.Attempt)
		}
		if event.Step != "" {
			logEvent = logEvent.Str("step", event.Step)
		}
		if event.ScreenshotPath != "" {
			logEvent = logEvent.Str("screenshot", event.ScreenshotPath)
		}
		if event.Elapsed > 0 {
			logEvent = logEvent.Dur("elapsed", event.Elapsed)
		}
		if event.Err != nil {
			logEvent = logEvent.Err(event.Err)
		}

		logEvent.Msg("Test lifecycle event")
		return nil
	}
}

// SubscribeLoggerToLifecycle subscribes the logger to every lifecycle event type
func SubscribeLoggerToLifecycle(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := models.AllLifecycleEventTypes()
	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Debug().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to lifecycle events")

	return nil
}
