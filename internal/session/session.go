// Package session holds per-conversation state: the transcript and the
// turn-taking phase machine that guards it.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for session operations.
var (
	// ErrTurnInFlight indicates a submit while a previous turn is still
	// awaiting its reply. Turns are single flight.
	ErrTurnInFlight = errors.New("a turn is already in flight")

	// ErrBlankMessage indicates a submit whose text is empty after
	// trimming whitespace.
	ErrBlankMessage = errors.New("message is blank")

	// ErrNoTurnInFlight indicates a resolve or fail with no pending turn.
	ErrNoTurnInFlight = errors.New("no turn in flight")
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Phase is the turn-taking state of a session.
type Phase int

const (
	// Idle accepts a new submit.
	Idle Phase = iota

	// AwaitingTurn has an optimistic user message appended and a turn in
	// flight; submits are rejected until Resolve or Fail.
	AwaitingTurn
)

// String implements fmt.Stringer for logging.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingTurn:
		return "awaiting_turn"
	default:
		return "unknown"
	}
}

// Message is one transcript entry.
type Message struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// State is one conversation: a chronological transcript plus the phase
// machine that serializes turns over it.
//
// The transcript only ever changes at the tail: Submit appends, Resolve
// appends, Fail truncates the optimistic user message. Safe for concurrent
// use.
type State struct {
	mu       sync.Mutex
	id       uuid.UUID
	messages []Message
	phase    Phase
	now      func() time.Time
}

// NewState creates an idle session with an empty transcript.
func NewState() *State {
	return &State{
		id:  uuid.New(),
		now: time.Now,
	}
}

// ID returns the session identifier.
func (s *State) ID() uuid.UUID { return s.id }

// Phase returns the current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Messages returns a copy of the transcript in chronological order.
func (s *State) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Message, len(s.messages))
	copy(cp, s.messages)
	return cp
}

// Submit starts a turn: it appends the trimmed text as an optimistic user
// message, moves the session to AwaitingTurn, and returns the trimmed text
// for dispatch.
//
// Returns ErrBlankMessage for whitespace-only input (the transcript is
// untouched) and ErrTurnInFlight while a previous turn is pending.
func (s *State) Submit(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrBlankMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Idle {
		return "", ErrTurnInFlight
	}

	s.messages = append(s.messages, Message{
		Role: RoleUser,
		Text: trimmed,
		At:   s.now(),
	})
	s.phase = AwaitingTurn
	return trimmed, nil
}

// Resolve completes the in-flight turn: the assistant reply is appended
// and the session returns to Idle.
func (s *State) Resolve(response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != AwaitingTurn {
		return ErrNoTurnInFlight
	}

	s.messages = append(s.messages, Message{
		Role: RoleAssistant,
		Text: response,
		At:   s.now(),
	})
	s.phase = Idle
	return nil
}

// Fail aborts the in-flight turn: the optimistic user message is rolled
// back from the tail and the session returns to Idle. Surfacing the
// failure to the user (exactly once per failed turn) is the caller's job.
func (s *State) Fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != AwaitingTurn {
		return ErrNoTurnInFlight
	}

	// The tail is the optimistic user message appended by Submit.
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == RoleUser {
		s.messages = s.messages[:n-1]
	}
	s.phase = Idle
	return nil
}

// Clear empties the transcript. Rejected while a turn is in flight so the
// pending reply cannot land in a fresh conversation.
func (s *State) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Idle {
		return ErrTurnInFlight
	}
	s.messages = nil
	return nil
}
