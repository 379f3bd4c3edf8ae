package api

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"pytia/internal/chat"
)

type sessionRecord struct {
	Session   *chat.Session
	CreatedAt int64
}

// SessionStore keeps live chat sessions keyed by id. Sessions hold only the
// turn window, so the store is purely in-memory and is dropped on restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionRecord),
	}
}

func (s *SessionStore) Create(sess *chat.Session, now time.Time) (string, *sessionRecord) {
	id := newSessionID()
	rec := &sessionRecord{
		Session:   sess,
		CreatedAt: now.Unix(),
	}
	s.mu.Lock()
	s.sessions[id] = rec
	s.mu.Unlock()
	return id, rec
}

func (s *SessionStore) Get(id string) (*sessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	return rec, ok
}

func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func newSessionID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "sess_" + hex.EncodeToString(b)
}
