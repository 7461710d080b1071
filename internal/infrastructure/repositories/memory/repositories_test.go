package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"djbook/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user := &domain.User{Username: "dj_kilo", Role: domain.RoleDJ, IPHistory: []string{"10.0.0.1"}, Version: 1}
	require.NoError(t, repo.Create(ctx, user))
	assert.ErrorIs(t, repo.Create(ctx, user), domain.ErrUserExists)

	got, err := repo.GetByUsername(ctx, "dj_kilo")
	require.NoError(t, err)
	got.IPHistory[0] = "mutated"

	again, err := repo.GetByUsername(ctx, "dj_kilo")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", again.IPHistory[0])

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMemoryUserRepository_UpdateBanRecordComparesVersion(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.User{Username: "u", Role: domain.RoleGuest, Version: 1}))

	next := &domain.User{Username: "u", BanStrikeCount: 1, CurrentIP: "10.0.0.2", IPHistory: []string{"10.0.0.2"}, Version: 2}
	require.NoError(t, repo.UpdateBanRecord(ctx, next, 1))

	stale := &domain.User{Username: "u", BanStrikeCount: 1, Version: 2}
	assert.ErrorIs(t, repo.UpdateBanRecord(ctx, stale, 1), domain.ErrConcurrentUpdateConflict)

	got, err := repo.GetByUsername(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, got.BanStrikeCount)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, domain.RoleGuest, got.Role)

	assert.ErrorIs(t, repo.UpdateBanRecord(ctx, &domain.User{Username: "ghost"}, 0), domain.ErrUserNotFound)
}

func TestMemoryUserRepository_FieldUpdates(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.User{Username: "u", Role: domain.RoleGuest, Version: 1}))

	require.NoError(t, repo.UpdateCurrentIP(ctx, "u", "10.1.1.1"))
	require.NoError(t, repo.UpdateRole(ctx, "u", domain.RoleManager))
	require.NoError(t, repo.SetVenueOwner(ctx, "u", true))

	got, err := repo.GetByUsername(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", got.CurrentIP)
	assert.Empty(t, got.IPHistory)
	assert.Equal(t, domain.RoleManager, got.Role)
	assert.True(t, got.IsVenueOwner)

	assert.ErrorIs(t, repo.UpdateRole(ctx, "ghost", domain.RoleDJ), domain.ErrUserNotFound)
}

func TestMemoryVenueRepository(t *testing.T) {
	repo := NewMemoryVenueRepository()
	ctx := context.Background()

	venue := &domain.Venue{Name: "Basement", OwnerUsername: "owner", IsOpen: true}
	require.NoError(t, repo.Create(ctx, venue))
	assert.ErrorIs(t, repo.Create(ctx, venue), domain.ErrVenueExists)

	got, err := repo.GetByName(ctx, "Basement")
	require.NoError(t, err)
	got.IsOpen = false
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByName(ctx, "Basement")
	require.NoError(t, err)
	assert.False(t, again.IsOpen)

	assert.ErrorIs(t, repo.Update(ctx, &domain.Venue{Name: "Nowhere"}), domain.ErrVenueNotFound)
	_, err = repo.GetByName(ctx, "Nowhere")
	assert.ErrorIs(t, err, domain.ErrVenueNotFound)
}

func TestMemoryBookingRepository(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, b := range []domain.Booking{
		{ID: "b2", DJUsername: "kilo", VenueName: "Basement", CreatedAt: base.Add(time.Hour)},
		{ID: "b1", DJUsername: "kilo", VenueName: "Attic", CreatedAt: base},
		{ID: "b3", DJUsername: "lima", VenueName: "Basement", CreatedAt: base.Add(2 * time.Hour)},
	} {
		b := b
		b.Status = domain.BookingStatusPending
		require.NoError(t, repo.Create(ctx, &b), i)
	}

	byDJ, err := repo.ListByDJ(ctx, "kilo")
	require.NoError(t, err)
	require.Len(t, byDJ, 2)
	assert.Equal(t, domain.BookingID("b1"), byDJ[0].ID)
	assert.Equal(t, domain.BookingID("b2"), byDJ[1].ID)

	byVenue, err := repo.ListByVenue(ctx, "Basement")
	require.NoError(t, err)
	assert.Len(t, byVenue, 2)

	empty, err := repo.ListByVenue(ctx, "Garage")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.UpdateStatus(ctx, "b1", domain.BookingStatusPending, domain.BookingStatusConfirmed))
	got, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", domain.BookingStatusPending, domain.BookingStatusCancelled), domain.ErrBookingNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestMemoryBookingRepository_UpdateStatusRequiresExpectedStatus(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Booking{
		ID: "b1", DJUsername: "kilo", VenueName: "Attic", Status: domain.BookingStatusPending,
	}))

	require.NoError(t, repo.UpdateStatus(ctx, "b1", domain.BookingStatusPending, domain.BookingStatusCancelled))

	err := repo.UpdateStatus(ctx, "b1", domain.BookingStatusPending, domain.BookingStatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdateConflict)

	got, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
}

func TestMemoryBookingRepository_UpdateStatusSingleWinner(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Booking{
		ID: "b1", DJUsername: "kilo", VenueName: "Attic", Status: domain.BookingStatusPending,
	}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, to := range []domain.BookingStatus{domain.BookingStatusConfirmed, domain.BookingStatusCancelled} {
		wg.Add(1)
		go func(to domain.BookingStatus) {
			defer wg.Done()
			if repo.UpdateStatus(ctx, "b1", domain.BookingStatusPending, to) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(to)
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestKeyedLocker_SerializesSameKey(t *testing.T) {
	locker := NewKeyedLocker()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "dj_kilo")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locker.size())
}

func TestKeyedLocker_DifferentKeysDoNotContend(t *testing.T) {
	locker := NewKeyedLocker()
	unlockA, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedLocker_ContextCancelled(t *testing.T) {
	locker := NewKeyedLocker()
	unlock, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, locker.size())
}
