package sessions

import (
	"errors"
	"fmt"

	"github.com/ternarybob/vantage/internal/models"
)

// ErrSessionClosed is returned by any operation on a closed session
var ErrSessionClosed = errors.New("session is closed")

// Stage identifies the step of session construction that failed
type Stage string

const (
	StageOptions   Stage = "options"
	StageLaunch    Stage = "launch"
	StageConfigure Stage = "configure"
	StageWindow    Stage = "window"
	StageReady     Stage = "ready"
)

// SessionInitError means the executable was found but the session could not
// be constructed or configured. It is fatal to the test setup.
type SessionInitError struct {
	WorkerID string
	Family   models.BrowserFamily
	Stage    Stage
	Err      error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("failed to initialise %s session for worker %s at %s stage: %v", e.Family, e.WorkerID, e.Stage, e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// NoActiveSessionError is returned when a worker asks for a session it never set up
type NoActiveSessionError struct {
	WorkerID string
}

func (e *NoActiveSessionError) Error() string {
	return fmt.Sprintf("no active session for worker %s", e.WorkerID)
}

// TeardownError records a close failure during cleanup. It is logged, never raised.
type TeardownError struct {
	WorkerID  string
	SessionID string
	Err       error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("failed to close session %s for worker %s: %v", e.SessionID, e.WorkerID, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }
