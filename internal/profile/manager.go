package profile

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kalambet/sakha/internal/extract"
	"github.com/kalambet/sakha/internal/storage"
)

// DefaultTTL is how long an idle session's memory stays cached.
const DefaultTTL = 30 * time.Minute

// FactStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type FactStore interface {
	AddFact(sessionID, category, value string) error
	Facts(sessionID string) ([]storage.Fact, error)
}

// Manager keeps per-session entity and topic registries. Entries are cached
// with a TTL refreshed on every write and rebuilt from stored facts on a miss, so nothing is
// lost when a session is evicted or the process restarts.
type Manager struct {
	store FactStore

	mu    sync.RWMutex
	cache *cache.Cache
}

// NewManager creates a Manager. A non-positive ttl selects DefaultTTL.
func NewManager(store FactStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store: store,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Memory returns a copy of what is known about the session.
func (m *Manager) Memory(sessionID string) (Memory, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if x, ok := m.cache.Get(sessionID); ok {
		cp := x.(*Memory).clone()
		m.mu.RUnlock()
		return cp, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	mem, err := m.load(sessionID)
	if err != nil {
		return Memory{}, err
	}
	return mem.clone(), nil
}

// TrackEntities merges newly seen entities into the session registry.
func (m *Manager) TrackEntities(sessionID string, e extract.Entities) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, err := m.load(sessionID)
	if err != nil {
		return err
	}
	for _, cat := range extract.Categories {
		for _, v := range e[cat] {
			if mem.hasEntity(cat, v) {
				continue
			}
			if err := m.store.AddFact(sessionID, cat, v); err != nil {
				return fmt.Errorf("tracking %s %q: %w", cat, v, err)
			}
			mem.Entities[cat] = append(mem.Entities[cat], v)
		}
	}
	return nil
}

// TrackTopics records keywords as the session's most recent topics.
func (m *Manager) TrackTopics(sessionID string, topics []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, err := m.load(sessionID)
	if err != nil {
		return err
	}
	for _, t := range topics {
		if err := m.store.AddFact(sessionID, TopicCategory, t); err != nil {
			return fmt.Errorf("tracking topic %q: %w", t, err)
		}
		mem.touchTopic(t)
	}
	return nil
}

// Forget drops the cached registry of a session.
func (m *Manager) Forget(sessionID string) {
	m.cache.Delete(sessionID)
}

// ForgetAll drops every cached registry.
func (m *Manager) ForgetAll() {
	m.cache.Flush()
}

// load returns the cached registry, rebuilding it from facts on a miss.
// Callers must hold m.mu for writing.
func (m *Manager) load(sessionID string) (*Memory, error) {
	if x, ok := m.cache.Get(sessionID); ok {
		mem := x.(*Memory)
		m.cache.Set(sessionID, mem, cache.DefaultExpiration)
		return mem, nil
	}

	facts, err := m.store.Facts(sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading memory for %s: %w", sessionID, err)
	}
	mem := &Memory{Entities: make(extract.Entities)}
	for _, f := range facts {
		if f.Category == TopicCategory {
			mem.touchTopic(f.Value)
			continue
		}
		if !mem.hasEntity(f.Category, f.Value) {
			mem.Entities[f.Category] = append(mem.Entities[f.Category], f.Value)
		}
	}
	m.cache.Set(sessionID, mem, cache.DefaultExpiration)
	return mem, nil
}
