package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same semantics as the
// PostgreSQL implementation, including the refresh compare-and-swap.
// Used by tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	tenants  map[string]Tenant
	users    map[string]User           // key: user id
	byEmail  map[string]string         // key: tenantID+"\x00"+email -> user id
	sessions map[string]RefreshSession // key: user id
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:  make(map[string]Tenant),
		users:    make(map[string]User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]RefreshSession),
	}
}

func (m *MemoryStore) Tenants() TenantStore { return (*memTenants)(m) }

func (m *MemoryStore) Users() UserStore { return (*memUsers)(m) }

func (m *MemoryStore) RefreshSessions() RefreshStore { return (*memSessions)(m) }

func emailKey(tenantID, email string) string { return tenantID + "\x00" + email }

type memTenants MemoryStore

func (m *memTenants) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	m.tenants[t.ID] = *t
	return nil
}

func (m *memTenants) Find(_ context.Context, id string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

type memUsers MemoryStore

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[emailKey(u.TenantID, u.Email)]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *u
	m.byEmail[emailKey(u.TenantID, u.Email)] = u.ID
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, tenantID, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[emailKey(tenantID, email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *memUsers) FindByID(_ context.Context, tenantID, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) List(_ context.Context, tenantID string) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.users {
		if u.TenantID == tenantID {
			copied := u
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, tenantID, userID, passwordHash string) error {
	return (*MemoryStore)(m).mutateUser(tenantID, userID, func(u *User) {
		u.PasswordHash = passwordHash
	})
}

func (m *memUsers) UpdateStatus(_ context.Context, tenantID, userID, status, updatedBy string) error {
	return (*MemoryStore)(m).mutateUser(tenantID, userID, func(u *User) {
		u.Status = status
		u.UpdatedBy = updatedBy
	})
}

func (m *memUsers) UpdateRole(_ context.Context, tenantID, userID string, role Role, updatedBy string) error {
	return (*MemoryStore)(m).mutateUser(tenantID, userID, func(u *User) {
		u.Role = role
		u.UpdatedBy = updatedBy
	})
}

func (m *memUsers) RecordLogin(_ context.Context, tenantID, userID string, at time.Time) error {
	return (*MemoryStore)(m).mutateUser(tenantID, userID, func(u *User) {
		t := at
		u.LastLoginAt = &t
	})
}

func (m *MemoryStore) mutateUser(tenantID, userID string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.TenantID != tenantID {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	m.users[userID] = u
	return nil
}

type memSessions MemoryStore

func (m *memSessions) Rotate(_ context.Context, userID, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = RefreshSession{UserID: userID, TokenDigest: digest, RotatedAt: time.Now().UTC()}
	return nil
}

func (m *memSessions) Verify(_ context.Context, userID, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[userID]
	if !ok || !digestEqual(rec.TokenDigest, digest) {
		return ErrUnauthorized
	}
	return nil
}

func (m *memSessions) Swap(_ context.Context, userID, oldDigest, newDigest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[userID]
	if !ok || !digestEqual(rec.TokenDigest, oldDigest) {
		return ErrUnauthorized
	}
	m.sessions[userID] = RefreshSession{UserID: userID, TokenDigest: newDigest, RotatedAt: time.Now().UTC()}
	return nil
}

func (m *memSessions) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
