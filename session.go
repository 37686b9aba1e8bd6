package hydrate

import (
	"log/slog"

	"github.com/google/uuid"
)

// Session is the per unit-of-work context handed to instantiators.
// A nil *Session is valid everywhere a Session is accepted.
type Session struct {
	id     uuid.UUID
	logger *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionID sets an explicit session identifier.
func WithSessionID(id uuid.UUID) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// WithSessionLogger sets the logger used by components acting on behalf of the session.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession returns a new Session with a random identifier.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{id: uuid.New(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier, or uuid.Nil for a nil session.
func (s *Session) ID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.id
}

// Logger returns the session logger, tagged with the session id.
func (s *Session) Logger() *slog.Logger {
	if s == nil {
		return slog.Default()
	}
	return s.logger.With("session", s.id.String())
}
