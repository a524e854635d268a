package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// State is the lifecycle state of a session
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateReady        State = "READY"
	StateClosed       State = "CLOSED"
)

// Session owns one live browser for one worker.
// State only moves forward: INITIALIZING -> READY -> CLOSED.
type Session struct {
	ID         string
	WorkerID   string
	CreatedAt  time.Time
	Config     models.SessionConfig
	Executable models.Executable

	mu      sync.RWMutex
	state   State
	browser interfaces.Browser
}

func newSession(workerID string, cfg models.SessionConfig, exe models.Executable) *Session {
	return &Session{
		ID:         common.NewSessionID(),
		WorkerID:   workerID,
		CreatedAt:  time.Now(),
		Config:     cfg,
		Executable: exe,
		state:      StateInitializing,
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) attach(b interfaces.Browser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.browser = b
}

func (s *Session) markReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitializing {
		return fmt.Errorf("cannot mark session %s ready from state %s", s.ID, s.state)
	}
	if s.browser == nil {
		return fmt.Errorf("session %s has no browser attached", s.ID)
	}
	s.state = StateReady
	return nil
}

// Browser returns the live handle, or ErrSessionClosed
func (s *Session) Browser() (interfaces.Browser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateClosed {
		return nil, ErrSessionClosed
	}
	if s.browser == nil {
		return nil, fmt.Errorf("session %s is still initialising", s.ID)
	}
	return s.browser, nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	b, err := s.Browser()
	if err != nil {
		return err
	}
	return b.Navigate(ctx, url)
}

func (s *Session) Evaluate(ctx context.Context, expression string, out interface{}) error {
	b, err := s.Browser()
	if err != nil {
		return err
	}
	return b.Evaluate(ctx, expression, out)
}

func (s *Session) Location(ctx context.Context) (string, error) {
	b, err := s.Browser()
	if err != nil {
		return "", err
	}
	return b.Location(ctx)
}

func (s *Session) Title(ctx context.Context) (string, error) {
	b, err := s.Browser()
	if err != nil {
		return "", err
	}
	return b.Title(ctx)
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	b, err := s.Browser()
	if err != nil {
		return nil, err
	}
	return b.Screenshot(ctx)
}

// Close moves the session to CLOSED and releases the browser.
// It is safe from any state; only the first call closes the browser.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	b := s.browser
	s.browser = nil
	s.mu.Unlock()

	if b == nil {
		return nil
	}
	return b.Close()
}
