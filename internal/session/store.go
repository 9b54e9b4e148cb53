package session

import (
	"errors"
	"sync"
	"time"

	"loginflow/backend/internal/models"
)

// ErrNotRecording is returned when a capture arrives with no active session.
// Callers drop the capture; it is a structured flag, not a fault.
var ErrNotRecording = errors.New("no recording in progress")

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	IsRecording bool            `json:"is_recording"`
	Domain      string          `json:"domain"`
	Actions     []models.Action `json:"actions"`
	Count       int             `json:"count"`
	StartTime   time.Time       `json:"start_time"`
}

// Store is the single source of truth for the one active recording session.
// All mutation funnels through its methods; the capture layer is the only
// writer and the status API only reads snapshots.
type Store struct {
	mu        sync.RWMutex
	recording bool
	domain    string
	startTime time.Time
	actions   []models.Action
}

func NewStore() *Store {
	return &Store{}
}

// Start begins a session for domain. It is idempotent: if a session is
// already recording, the existing state is returned untouched, so a page
// navigation that re-initializes the capture layer cannot wipe the actions
// captured before the navigation.
func (s *Store) Start(domain string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		s.recording = true
		s.domain = domain
		s.startTime = time.Now()
		s.actions = make([]models.Action, 0)
	}
	return s.snapshotLocked()
}

// Append records one captured action and returns the new total count.
// Click and enter actions always append. An input action whose selector set
// exactly matches an already-captured input action replaces it in place:
// latest value wins, position unchanged.
func (s *Store) Append(action models.Action) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return 0, ErrNotRecording
	}

	if action.Kind == models.ActionInput {
		for i := range s.actions {
			if s.actions[i].Kind == models.ActionInput && s.actions[i].SameTarget(action) {
				s.actions[i] = action
				return len(s.actions), nil
			}
		}
	}

	s.actions = append(s.actions, action)
	return len(s.actions), nil
}

// State returns a read-only snapshot of the current session.
func (s *Store) State() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Stop ends the session and returns the final action list. The store does
// not persist it; saving to the site registry is the caller's job.
func (s *Store) Stop() []models.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := s.actions
	s.recording = false
	s.domain = ""
	s.actions = nil
	s.startTime = time.Time{}

	if actions == nil {
		actions = make([]models.Action, 0)
	}
	return actions
}

func (s *Store) snapshotLocked() Snapshot {
	actions := make([]models.Action, len(s.actions))
	copy(actions, s.actions)
	return Snapshot{
		IsRecording: s.recording,
		Domain:      s.domain,
		Actions:     actions,
		Count:       len(actions),
		StartTime:   s.startTime,
	}
}
