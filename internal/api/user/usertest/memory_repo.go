// Package usertest provides an in-memory user.UserRepo for service tests.
package usertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/user"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

var _ user.UserRepo = (*MemoryRepo)(nil)

// MemoryRepo keeps users in a map and enforces the email uniqueness the
// database index provides, frozen rows included.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*types.User
	Now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[uuid.UUID]*types.User), Now: time.Now}
}

// Put stores u as-is, bypassing uniqueness. Useful for seeding fixtures.
func (m *MemoryRepo) Put(u *types.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	m.users[u.ID] = &c
}

// Get returns a copy of the stored row regardless of soft-delete state.
func (m *MemoryRepo) Get(id uuid.UUID) (*types.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, false
	}
	c := *u
	return &c, true
}

func (m *MemoryRepo) FindByEmail(ctx context.Context, email string, opts ...user.QueryOption) (*types.User, error) {
	return m.FindOne(ctx, user.ByEmail(email), opts...)
}

func (m *MemoryRepo) FindByID(ctx context.Context, id uuid.UUID, opts ...user.QueryOption) (*types.User, error) {
	return m.FindOne(ctx, user.ByID(id), opts...)
}

func (m *MemoryRepo) FindOne(_ context.Context, f user.Filter, opts ...user.QueryOption) (*types.User, error) {
	if f.Empty() {
		return nil, user.ErrEmptyFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.match(f, opts)
	if u == nil {
		return nil, api.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MemoryRepo) Create(_ context.Context, u *types.User) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(u.Email, uuid.Nil) {
		return nil, api.ErrDuplicateIdentity
	}
	c := *u
	c.ID = uuid.New()
	c.CreatedAt = m.Now()
	c.UpdatedAt = c.CreatedAt
	m.users[c.ID] = &c
	out := c
	return &out, nil
}

func (m *MemoryRepo) UpdateOne(ctx context.Context, f user.Filter, u *user.Update, opts ...user.QueryOption) (bool, error) {
	_, err := m.FindOneAndUpdate(ctx, f, u, opts...)
	if errors.Is(err, api.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *MemoryRepo) FindOneAndUpdate(_ context.Context, f user.Filter, u *user.Update, opts ...user.QueryOption) (*types.User, error) {
	if f.Empty() {
		return nil, user.ErrEmptyFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.match(f, opts)
	if row == nil {
		return nil, api.ErrUserNotFound
	}
	next := *row
	u.Apply(&next, m.Now())
	if m.emailTaken(next.Email, next.ID) {
		return nil, api.ErrDuplicateIdentity
	}
	*row = next
	return &next, nil
}

func (m *MemoryRepo) DeleteOne(_ context.Context, f user.Filter, opts ...user.QueryOption) (bool, error) {
	if f.Empty() {
		return false, user.ErrEmptyFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.match(f, opts)
	if row == nil {
		return false, nil
	}
	delete(m.users, row.ID)
	return true, nil
}

func (m *MemoryRepo) match(f user.Filter, opts []user.QueryOption) *types.User {
	for _, u := range m.users {
		if f.Matches(u, opts...) {
			return u
		}
	}
	return nil
}

func (m *MemoryRepo) emailTaken(email string, except uuid.UUID) bool {
	for _, u := range m.users {
		if u.ID != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}
