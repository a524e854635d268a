package models

import "time"

// LifecycleEventType is the kind of test lifecycle event emitted to reporters
type LifecycleEventType string

const (
	EventTestStart      LifecycleEventType = "test_start"
	EventTestPass       LifecycleEventType = "test_pass"
	EventTestFail       LifecycleEventType = "test_fail"
	EventTestSkip       LifecycleEventType = "test_skip"
	EventTestStep       LifecycleEventType = "test_step"
	EventTestScreenshot LifecycleEventType = "test_screenshot"
	EventTestRetry      LifecycleEventType = "test_retry"
)

// AllLifecycleEventTypes returns every lifecycle event type
func AllLifecycleEventTypes() []LifecycleEventType {
	return []LifecycleEventType{
		EventTestStart,
		EventTestPass,
		EventTestFail,
		EventTestSkip,
		EventTestStep,
		EventTestScreenshot,
		EventTestRetry,
	}
}

// LifecycleEvent is the payload published for every lifecycle event.
type LifecycleEvent struct {
	Type           LifecycleEventType `json:"type"`
	RunID          string             `json:"run_id"`
	TestName       string             `json:"test_name"`
	WorkerID       string             `json:"worker_id"`
	Attempt        int                `json:"attempt"`
	Step           string             `json:"step,omitempty"`
	ScreenshotPath string             `json:"screenshot_path,omitempty"`
	Elapsed        time.Duration      `json:"elapsed"`
	Err            error              `json:"-"`
	Timestamp      time.Time          `json:"timestamp"`
}

// FailureEvent is what the runner hands to a retry policy after a failed attempt.
type FailureEvent struct {
	InstanceID string
	TestName   string
	WorkerID   string
	Attempt    int
	Err        error
}
