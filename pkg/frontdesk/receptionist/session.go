// Package receptionist – session.go implements the keyed, time-limited
// cache of ongoing conversations. SMS sessions are keyed by phone number,
// voice sessions by call SID. A session idle past the TTL is discarded and
// the next inbound message starts fresh.
package receptionist

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSessionTTL is the idle duration after which a session is evicted.
const DefaultSessionTTL = 30 * time.Minute

// Turn is one entry in a conversation's ordered history.
type Turn struct {
	// Role is one of "system", "user", "assistant", "tool".
	Role string

	Content string

	// ToolCalls carries the assistant's tool invocations, when any.
	ToolCalls []ToolCall

	// ToolCallID links a tool-result turn back to its invocation.
	ToolCallID string

	Timestamp time.Time
}

// Session is one conversation with a single caller or texter.
type Session struct {
	// Key is the identity key: phone number (SMS) or call SID (voice).
	Key string

	// Channel is "sms" or "voice".
	Channel string

	CreatedAt time.Time

	turns        []Turn
	leadDraft    map[string]string
	lastActiveAt time.Time

	// turnMu serializes whole turns: one inbound message at a time per
	// session. Internal state uses mu.
	turnMu sync.Mutex
	mu     sync.RWMutex
}

// AppendTurn adds a turn to the history and refreshes activity.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	s.turns = append(s.turns, t)
	s.lastActiveAt = t.Timestamp
}

// Turns returns a copy of the conversation history.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TruncateTurns drops history past n entries. The SMS engine uses this to
// roll back a failed exchange so a provider error never corrupts history.
func (s *Session) TruncateTurns(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < len(s.turns) {
		s.turns = s.turns[:n]
	}
}

// TurnCount returns the number of turns in the history.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// MergeLeadDraft records partially-filled lead fields accumulated across
// turns. Later non-empty values win.
func (s *Session) MergeLeadDraft(fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range fields {
		if v != "" {
			s.leadDraft[k] = v
		}
	}
}

// LeadDraft returns a copy of the accumulated lead fields.
func (s *Session) LeadDraft() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.leadDraft))
	for k, v := range s.leadDraft {
		out[k] = v
	}
	return out
}

// LastActiveAt returns the timestamp of the last activity.
func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}

// SessionStore manages active sessions with TTL-based eviction.
// Concurrent access to different keys never blocks; turn state for one
// key is serialized through the session's turn lock.
type SessionStore struct {
	sessions     map[string]*Session
	ttl          time.Duration
	instructions string
	logger       *slog.Logger
	mu           sync.RWMutex

	// now is injectable for tests.
	now func() time.Time
}

// NewSessionStore creates a session store. instructions seed the system
// turn of every fresh session.
func NewSessionStore(ttl time.Duration, instructions string, logger *slog.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		sessions:     make(map[string]*Session),
		ttl:          ttl,
		instructions: instructions,
		logger:       logger.With("component", "sessions"),
		now:          time.Now,
	}
}

// GetOrCreate returns the live session for key, discarding and replacing
// it when idle past the TTL. Every access refreshes last-activity.
func (ss *SessionStore) GetOrCreate(key, channel string) *Session {
	now := ss.now()

	ss.mu.RLock()
	session, exists := ss.sessions[key]
	ss.mu.RUnlock()

	if exists && now.Sub(session.LastActiveAt()) <= ss.ttl {
		ss.touch(session, now)
		return session
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	// Double-check after acquiring the write lock.
	if session, ok := ss.sessions[key]; ok && now.Sub(session.LastActiveAt()) <= ss.ttl {
		ss.touch(session, now)
		return session
	}

	if exists {
		ss.logger.Info("expired session discarded", "key", key, "channel", channel)
	}

	session = &Session{
		Key:          key,
		Channel:      channel,
		CreatedAt:    now,
		leadDraft:    make(map[string]string),
		lastActiveAt: now,
	}
	if ss.instructions != "" {
		session.turns = []Turn{{Role: "system", Content: ss.instructions, Timestamp: now}}
	}
	ss.sessions[key] = session
	ss.logger.Info("session created", "key", key, "channel", channel)
	return session
}

func (ss *SessionStore) touch(s *Session, now time.Time) {
	s.mu.Lock()
	s.lastActiveAt = now
	s.mu.Unlock()
}

// Touch refreshes last-activity for key, if the session exists.
func (ss *SessionStore) Touch(key string) {
	ss.mu.RLock()
	session := ss.sessions[key]
	ss.mu.RUnlock()
	if session != nil {
		ss.touch(session, ss.now())
	}
}

// Delete removes a session. Voice sessions are deleted on call end.
func (ss *SessionStore) Delete(key string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, key)
}

// Count returns the number of live sessions.
func (ss *SessionStore) Count() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Sweep evicts sessions idle past the TTL and returns how many were removed.
func (ss *SessionStore) Sweep() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	cutoff := ss.now().Add(-ss.ttl)
	swept := 0
	for key, session := range ss.sessions {
		if session.LastActiveAt().Before(cutoff) {
			delete(ss.sessions, key)
			swept++
		}
	}
	if swept > 0 {
		ss.logger.Info("idle sessions evicted", "swept", swept, "remaining", len(ss.sessions))
	}
	return swept
}

// StartSweeper runs Sweep on a ticker until ctx is cancelled.
func (ss *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = ss.ttl / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ss.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
