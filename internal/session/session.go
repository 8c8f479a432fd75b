// Package session holds the per-user planning session: the interview
// conversation, its readiness state and the last committed plan.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/sprintfactory/internal/interview"
	"github.com/lucasnoah/sprintfactory/internal/planning"
)

var (
	// ErrNotFound is returned when a session id is unknown to the store.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for ids that are unsafe as file names or keys.
	ErrInvalidID = errors.New("invalid session id")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Session is everything one planning conversation owns.
type Session struct {
	ID        string               `json:"id"`
	History   []interview.Message  `json:"history"`
	Interview interview.State      `json:"interview"`
	Plan      *planning.SprintPlan `json:"plan,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// New returns an empty session with a random id.
func New() *Session {
	return NewWithID(uuid.NewString())
}

// NewWithID returns an empty session with the given id.
func NewWithID(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, History: []interview.Message{}, CreatedAt: now, UpdatedAt: now}
}

// ValidateID rejects ids that are not safe as file names or redis keys.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	return nil
}

// Append adds a message to the conversation.
func (s *Session) Append(role, content string) {
	s.History = append(s.History, interview.Message{Role: role, Content: content})
}

// Reset clears the conversation, interview state and plan, keeping the id.
func (s *Session) Reset() {
	s.History = []interview.Message{}
	s.Interview = interview.State{}
	s.Plan = nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("clone session: %v", err))
	}
	var cp Session
	if err := json.Unmarshal(data, &cp); err != nil {
		panic(fmt.Sprintf("clone session: %v", err))
	}
	return &cp
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
	Close() error
}

// GetOrCreate loads id, or returns a fresh unsaved session when it does not exist.
func GetOrCreate(ctx context.Context, st Store, id string) (*Session, error) {
	s, err := st.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return NewWithID(id), nil
	}
	return s, err
}

func touch(s *Session) {
	s.UpdatedAt = time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
}
