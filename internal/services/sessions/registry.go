package sessions

import (
	"errors"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
)

// Registry maps worker ids to their single active session.
// Each worker id is only touched by its owning worker, so the lock guards the
// map itself and sessions are closed outside it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   arbor.ILogger
}

// NewRegistry creates an empty registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Set maps workerID to session. A different prior session for the worker is
// torn down first.
func (r *Registry) Set(workerID string, session *Session) {
	r.mu.Lock()
	prior := r.sessions[workerID]
	r.mu.Unlock()

	if prior != nil && prior != session {
		r.logger.Warn().
			Str("worker_id", workerID).
			Str("session_id", prior.ID).
			Msg("Replacing existing session, closing previous one")
		r.teardown(workerID, prior)
	}

	r.mu.Lock()
	r.sessions[workerID] = session
	r.mu.Unlock()
}

// Get returns the active session for workerID or *NoActiveSessionError
func (r *Registry) Get(workerID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[workerID]
	if !ok {
		return nil, &NoActiveSessionError{WorkerID: workerID}
	}
	return session, nil
}

// Remove closes and unmaps the worker's session. It is a no-op when the worker
// has none. Close failures are logged and returned as *TeardownError for
// reporting; the mapping is cleared either way.
func (r *Registry) Remove(workerID string) error {
	r.mu.Lock()
	session, ok := r.sessions[workerID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	err := r.teardown(workerID, session)

	r.mu.Lock()
	if r.sessions[workerID] == session {
		delete(r.sessions, workerID)
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}
	return nil
}

func (r *Registry) teardown(workerID string, session *Session) *TeardownError {
	if err := session.Close(); err != nil {
		tErr := &TeardownError{WorkerID: workerID, SessionID: session.ID, Err: err}
		r.logger.Error().
			Str("worker_id", workerID).
			Str("session_id", session.ID).
			Err(err).
			Msg("Session teardown failed")
		return tErr
	}
	r.logger.Debug().
		Str("worker_id", workerID).
		Str("session_id", session.ID).
		Msg("Session closed")
	return nil
}

// Len returns the number of mapped sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// WorkerIDs returns the ids of workers with an active session, sorted
func (r *Registry) WorkerIDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// CloseAll removes every session. Used at suite end for sessions whose
// workers never reached their own teardown.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, id := range r.WorkerIDs() {
		if err := r.Remove(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
