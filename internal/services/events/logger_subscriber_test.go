package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/models"
)

// TestNewLoggerSubscriber verifies that the logger subscriber accepts every event shape
func TestNewLoggerSubscriber(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewNoOpLogger())
	ctx := context.Background()

	events := []models.LifecycleEvent{
		{Type: models.EventTestStart, TestName: "TestLogin", WorkerID: "worker-1", Attempt: 1},
		{Type: models.EventTestStep, TestName: "TestLogin", Step: "enter credentials"},
		{Type: models.EventTestScreenshot, TestName: "TestLogin", ScreenshotPath: "results/TestLogin.png"},
		{Type: models.EventTestFail, TestName: "TestLogin", Elapsed: time.Second, Err: errors.New("boom")},
		{Type: models.EventTestRetry, TestName: "TestLogin", Attempt: 2},
		{Type: models.EventTestPass},
	}
	for _, event := range events {
		assert.NoError(t, subscriber(ctx, event))
	}
}

// TestSubscribeLoggerToLifecycle verifies the logger is subscribed to all lifecycle types
func TestSubscribeLoggerToLifecycle(t *testing.T) {
	logger := arbor.NewNoOpLogger()
	service := NewService(logger)
	defer service.Close()

	require.NoError(t, SubscribeLoggerToLifecycle(service, logger))

	for _, eventType := range models.AllLifecycleEventTypes() {
		handlers, err := service.handlers(eventType)
		require.NoError(t, err)
		assert.Len(t, handlers, 1, "event type %s", eventType)

		assert.NoError(t, service.PublishSync(context.Background(), models.LifecycleEvent{Type: eventType, TestName: "TestSearch"}))
	}
}
