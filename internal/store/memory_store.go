package store

import (
	"sync"

	"brickshelf/pkg/domain"
)

// MemoryStore keeps records in-process; used by tests in place of Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	email     map[string]string // email -> user ID
	creations map[string]domain.Creation
	order     []string
	photos    map[string]domain.Photo
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		creations: make(map[string]domain.Creation),
		photos:    make(map[string]domain.Photo),
	}
}

// SaveUser inserts a user, enforcing email uniqueness like the DB index does.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.email[u.Email]; ok && existing != u.ID {
		return ErrDuplicate
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveCreation stores or replaces a creation and tracks insertion order.
func (m *MemoryStore) SaveCreation(c domain.Creation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.creations[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.creations[c.ID] = c
	return nil
}

// GetCreation retrieves a creation by ID.
func (m *MemoryStore) GetCreation(id string) (domain.Creation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creations[id]
	return c, ok, nil
}

// ListCreations returns creations in insertion order.
func (m *MemoryStore) ListCreations() ([]domain.Creation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Creation, 0, len(m.order))
	for _, id := range m.order {
		if c, ok := m.creations[id]; ok {
			res = append(res, c)
		}
	}
	return res, nil
}

// ListCreationsByOwner returns creations filtered by owner ID.
func (m *MemoryStore) ListCreationsByOwner(ownerID string) ([]domain.Creation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Creation, 0, len(m.order))
	for _, id := range m.order {
		if c, ok := m.creations[id]; ok && c.Owner == ownerID {
			res = append(res, c)
		}
	}
	return res, nil
}

// SavePhoto records an ingested photo.
func (m *MemoryStore) SavePhoto(p domain.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[p.ID] = p
	return nil
}
