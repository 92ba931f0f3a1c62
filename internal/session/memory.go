package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gridlens/outage-insight/internal/domain"
)

type memoryEntry struct {
	session domain.Session
	history []domain.Message
}

// MemoryStore keeps sessions in an expirable LRU so abandoned tutorial
// sessions age out instead of accumulating for the process lifetime.
type MemoryStore struct {
	mu      sync.RWMutex
	entries *expirable.LRU[string, *memoryEntry]
}

// NewMemoryStore creates a store holding at most maxEntries sessions,
// each expiring ttl after last write.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: expirable.NewLRU[string, *memoryEntry](maxEntries, nil, ttl),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, key string) (*domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries.Get(key); ok {
		sess := cloneSession(e.session)
		return &sess, false, nil
	}

	now := time.Now()
	e := &memoryEntry{
		session: domain.Session{
			Key:       key,
			Stage:     domain.StageIntro,
			Zips:      []string{},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	s.entries.Add(key, e)
	sess := cloneSession(e.session)
	return &sess, true, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(sess.Key)
	if !ok {
		e = &memoryEntry{}
	}
	sess.UpdatedAt = time.Now()
	e.session = cloneSession(*sess)
	s.entries.Add(sess.Key, e)
	return nil
}

func (s *MemoryStore) History(ctx context.Context, key string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries.Get(key)
	if !ok {
		return nil, nil
	}
	out := make([]domain.Message, len(e.history))
	copy(out, e.history)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, key string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(key)
	if !ok {
		now := time.Now()
		e = &memoryEntry{
			session: domain.Session{Key: key, Stage: domain.StageIntro, Zips: []string{}, CreatedAt: now, UpdatedAt: now},
		}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	e.history = append(e.history, msg)
	s.entries.Add(key, e)
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Len()
}

func cloneSession(sess domain.Session) domain.Session {
	zips := make([]string, len(sess.Zips))
	copy(zips, sess.Zips)
	sess.Zips = zips
	return sess
}
