package memory

import (
	"context"
	"fmt"
	"sync"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
)

// MemoryUserRepository keeps users in process. Records are cloned on the way
// in and out so callers never share state with the store.
type MemoryUserRepository struct {
	users map[string]*domain.User
	mu    sync.RWMutex
}

func NewMemoryUserRepository() ports.UserRepository {
	return &MemoryUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, user.Username)
	}

	r.users[user.Username] = user.Clone()
	return nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[username]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	return user.Clone(), nil
}

func (r *MemoryUserRepository) UpdateBanRecord(ctx context.Context, user *domain.User, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.users[user.Username]
	if !exists {
		return domain.ErrUserNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: user %s at version %d, expected %d",
			domain.ErrConcurrentUpdateConflict, user.Username, stored.Version, expectedVersion)
	}

	stored.CurrentIP = user.CurrentIP
	stored.IPHistory = append([]string(nil), user.IPHistory...)
	stored.BanStrikeCount = user.BanStrikeCount
	stored.IsPermanentBan = user.IsPermanentBan
	stored.IsGloballyMuted = user.IsGloballyMuted
	stored.Version = user.Version
	return nil
}

func (r *MemoryUserRepository) UpdateCurrentIP(ctx context.Context, username, ip string) error {
	return r.mutate(username, func(u *domain.User) { u.CurrentIP = ip })
}

func (r *MemoryUserRepository) UpdateRole(ctx context.Context, username string, role domain.Role) error {
	return r.mutate(username, func(u *domain.User) { u.Role = role })
}

func (r *MemoryUserRepository) SetVenueOwner(ctx context.Context, username string, owner bool) error {
	return r.mutate(username, func(u *domain.User) { u.IsVenueOwner = owner })
}

func (r *MemoryUserRepository) mutate(username string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[username]
	if !exists {
		return domain.ErrUserNotFound
	}
	fn(user)
	return nil
}
