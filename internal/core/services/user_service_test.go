package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/infrastructure/repositories/memory"
	"djbook/pkg/clock"
	"djbook/pkg/security"
	"djbook/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

func testHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()
	h, err := security.NewPasswordHasher(security.Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return h
}

func newTestUserService(t *testing.T) (ports.UserService, ports.UserRepository) {
	t.Helper()
	users := memory.NewMemoryUserRepository()
	svc := NewUserService(users, testHasher(t), clock.NewFake(testNow), zaptest.NewLogger(t).Sugar())
	return svc, users
}

// contendedUsers fails the next write of each listed kind with a version
// conflict, as when another writer committed first.
type contendedUsers struct {
	ports.UserRepository

	mu       sync.Mutex
	pending  map[string]int
	attempts map[string]int
}

func newContendedUsers(kinds ...string) *contendedUsers {
	c := &contendedUsers{
		UserRepository: memory.NewMemoryUserRepository(),
		pending:        make(map[string]int),
		attempts:       make(map[string]int),
	}
	for _, k := range kinds {
		c.pending[k]++
	}
	return c
}

func (c *contendedUsers) collide(kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[kind]++
	if c.pending[kind] > 0 {
		c.pending[kind]--
		return domain.ErrConcurrentUpdateConflict
	}
	return nil
}

func (c *contendedUsers) attemptsOf(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[kind]
}

func (c *contendedUsers) UpdateCurrentIP(ctx context.Context, username, ip string) error {
	if err := c.collide("ip"); err != nil {
		return err
	}
	return c.UserRepository.UpdateCurrentIP(ctx, username, ip)
}

func (c *contendedUsers) UpdateRole(ctx context.Context, username string, role domain.Role) error {
	if err := c.collide("role"); err != nil {
		return err
	}
	return c.UserRepository.UpdateRole(ctx, username, role)
}

func (c *contendedUsers) SetVenueOwner(ctx context.Context, username string, owner bool) error {
	if err := c.collide("owner"); err != nil {
		return err
	}
	return c.UserRepository.SetVenueOwner(ctx, username, owner)
}

func TestUserService_Register(t *testing.T) {
	svc, users := newTestUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "  dj_alex ", "correct horse", domain.RoleDJ, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "dj_alex", u.Username)
	assert.Equal(t, domain.RoleDJ, u.Role)
	assert.Equal(t, "10.0.0.1", u.CurrentIP)
	assert.Equal(t, []string{"10.0.0.1"}, u.IPHistory)
	assert.Equal(t, testNow, u.CreatedAt)
	assert.Equal(t, int64(1), u.Version)
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.Zero(t, u.BanStrikeCount)

	stored, err := users.GetByUsername(ctx, "dj_alex")
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)

	_, err = svc.Register(ctx, "dj_alex", "another pass", domain.RoleDJ, "10.0.0.2")
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestUserService_RegisterDefaultsAndRejections(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "guest_gus", "password1", "", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGuest, u.Role)

	tests := []struct {
		name     string
		username string
		password string
		role     domain.Role
		ip       string
		wantErr  error
	}{
		{"short username", "ab", "password1", domain.RoleDJ, "10.0.0.1", validation.ErrInvalid},
		{"short password", "dj_short", "pw", domain.RoleDJ, "10.0.0.1", validation.ErrInvalid},
		{"manager self-service", "mgr_mia", "password1", domain.RoleManager, "10.0.0.1", domain.ErrInvalidRole},
		{"sysadmin self-service", "root_rob", "password1", domain.RoleSysAdmin, "10.0.0.1", domain.ErrInvalidRole},
		{"unknown role", "who_ami", "password1", domain.Role("wizard"), "10.0.0.1", domain.ErrInvalidRole},
		{"bad ip", "dj_noip", "password1", domain.RoleDJ, "nowhere", validation.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password, tt.role, tt.ip)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUserService_Authenticate(t *testing.T) {
	svc, users := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dj_alex", "correct horse", domain.RoleDJ, "10.0.0.1")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "dj_alex", "correct horse", "10.0.0.7")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", u.CurrentIP)

	stored, err := users.GetByUsername(ctx, "dj_alex")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", stored.CurrentIP)
	assert.Equal(t, []string{"10.0.0.1"}, stored.IPHistory, "login never appends to the history")

	_, err = svc.Authenticate(ctx, "dj_alex", "wrong horse", "10.0.0.7")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "correct horse", "10.0.0.7")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUserService_AuthenticateBanned(t *testing.T) {
	svc, users := newTestUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "dj_alex", "correct horse", domain.RoleDJ, "10.0.0.1")
	require.NoError(t, err)

	banned := u.Clone()
	banned.IsPermanentBan = true
	banned.BanStrikeCount = 5
	banned.Version = 2
	require.NoError(t, users.UpdateBanRecord(ctx, banned, 1))

	_, err = svc.Authenticate(ctx, "dj_alex", "correct horse", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrPermanentlyBanned)

	// a wrong password still reads as bad credentials
	_, err = svc.Authenticate(ctx, "dj_alex", "wrong horse", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUserService_SetRole(t *testing.T) {
	svc, users := newTestUserService(t)
	ctx := context.Background()

	seedUser(t, users, &domain.User{Username: "root", Role: domain.RoleSysAdmin})
	seedUser(t, users, &domain.User{Username: "mia", Role: domain.RoleManager})
	_, err := svc.Register(ctx, "dj_alex", "correct horse", domain.RoleDJ, "10.0.0.1")
	require.NoError(t, err)

	u, err := svc.SetRole(ctx, "root", "dj_alex", domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, u.Role)

	_, err = svc.SetRole(ctx, "mia", "dj_alex", domain.RoleSysAdmin)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.SetRole(ctx, "root", "dj_alex", domain.Role("wizard"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = svc.SetRole(ctx, "root", "ghost", domain.RoleDJ)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserService_CanonicalizesIPs(t *testing.T) {
	users := newContendedUsers()
	svc := NewUserService(users, testHasher(t), clock.NewFake(testNow), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	u, err := svc.Register(ctx, "dj_alex", "correct horse", domain.RoleDJ, "::ffff:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", u.CurrentIP)
	assert.Equal(t, []string{"10.0.0.1"}, u.IPHistory)

	// same address in another spelling is not an IP change
	_, err = svc.Authenticate(ctx, "dj_alex", "correct horse", "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, users.attemptsOf("ip"))
}

func TestUserService_RetriesContendedWrites(t *testing.T) {
	users := newContendedUsers("ip", "role")
	svc := NewUserService(users, testHasher(t), clock.NewFake(testNow), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	seedUser(t, users, &domain.User{Username: "root", Role: domain.RoleSysAdmin})
	_, err := svc.Register(ctx, "dj_alex", "correct horse", domain.RoleDJ, "10.0.0.1")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "dj_alex", "correct horse", "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", u.CurrentIP)
	assert.Equal(t, 2, users.attemptsOf("ip"))

	stored, err := users.GetByUsername(ctx, "dj_alex")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", stored.CurrentIP)

	u, err = svc.SetRole(ctx, "root", "dj_alex", domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, u.Role)
	assert.Equal(t, 2, users.attemptsOf("role"))
}
