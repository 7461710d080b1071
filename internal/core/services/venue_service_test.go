package services

import (
	"context"
	"testing"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/infrastructure/repositories/memory"
	"djbook/pkg/clock"
	"djbook/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestVenueService(t *testing.T) (ports.VenueService, ports.UserRepository) {
	t.Helper()
	users := memory.NewMemoryUserRepository()
	svc := NewVenueService(memory.NewMemoryVenueRepository(), users, clock.NewFake(testNow), zaptest.NewLogger(t).Sugar())
	return svc, users
}

func TestVenueService_CreateVenue(t *testing.T) {
	svc, users := newTestVenueService(t)
	ctx := context.Background()
	seedUser(t, users, &domain.User{Username: "owner_olga", Role: domain.RoleVenueOwner})

	v, err := svc.CreateVenue(ctx, "owner_olga", " The Basement ")
	require.NoError(t, err)
	assert.Equal(t, "The Basement", v.Name)
	assert.Equal(t, "owner_olga", v.OwnerUsername)
	assert.True(t, v.IsOpen)
	assert.Equal(t, testNow, v.CreatedAt)

	owner, err := users.GetByUsername(ctx, "owner_olga")
	require.NoError(t, err)
	assert.True(t, owner.IsVenueOwner)

	_, err = svc.CreateVenue(ctx, "owner_olga", "The Basement")
	assert.ErrorIs(t, err, domain.ErrVenueExists)

	got, err := svc.GetVenue(ctx, "The Basement")
	require.NoError(t, err)
	assert.Equal(t, v.Name, got.Name)

	_, err = svc.GetVenue(ctx, "Nowhere")
	assert.ErrorIs(t, err, domain.ErrVenueNotFound)
}

func TestVenueService_CreateVenueRetriesContendedOwnerFlag(t *testing.T) {
	users := newContendedUsers("owner")
	svc := NewVenueService(memory.NewMemoryVenueRepository(), users, clock.NewFake(testNow), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	seedUser(t, users, &domain.User{Username: "owner_olga", Role: domain.RoleVenueOwner})

	_, err := svc.CreateVenue(ctx, "owner_olga", "The Basement")
	require.NoError(t, err)
	assert.Equal(t, 2, users.attemptsOf("owner"))

	owner, err := users.GetByUsername(ctx, "owner_olga")
	require.NoError(t, err)
	assert.True(t, owner.IsVenueOwner)
}

func TestVenueService_CreateVenueRejections(t *testing.T) {
	svc, users := newTestVenueService(t)
	ctx := context.Background()
	seedUser(t, users, &domain.User{Username: "dj_alex", Role: domain.RoleDJ})
	seedUser(t, users, &domain.User{Username: "banned_bo", Role: domain.RoleVenueOwner, IsPermanentBan: true})
	seedUser(t, users, &domain.User{Username: "mia", Role: domain.RoleManager})

	_, err := svc.CreateVenue(ctx, "dj_alex", "Club")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CreateVenue(ctx, "banned_bo", "Club")
	assert.ErrorIs(t, err, domain.ErrPermanentlyBanned)

	_, err = svc.CreateVenue(ctx, "ghost", "Club")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.CreateVenue(ctx, "mia", "")
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = svc.CreateVenue(ctx, "mia", "Staff Room")
	assert.NoError(t, err)
}

func TestVenueService_SetOpen(t *testing.T) {
	svc, users := newTestVenueService(t)
	ctx := context.Background()
	seedUser(t, users, &domain.User{Username: "owner_olga", Role: domain.RoleVenueOwner})
	seedUser(t, users, &domain.User{Username: "owner_pete", Role: domain.RoleVenueOwner, IsVenueOwner: true})
	seedUser(t, users, &domain.User{Username: "mia", Role: domain.RoleManager})

	_, err := svc.CreateVenue(ctx, "owner_olga", "The Basement")
	require.NoError(t, err)

	v, err := svc.SetOpen(ctx, "owner_olga", "The Basement", false)
	require.NoError(t, err)
	assert.False(t, v.IsOpen)

	_, err = svc.SetOpen(ctx, "owner_pete", "The Basement", true)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	v, err = svc.SetOpen(ctx, "mia", "The Basement", true)
	require.NoError(t, err)
	assert.True(t, v.IsOpen)

	_, err = svc.SetOpen(ctx, "mia", "Nowhere", true)
	assert.ErrorIs(t, err, domain.ErrVenueNotFound)
}
