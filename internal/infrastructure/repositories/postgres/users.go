package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/pkg/tracing"
)

var userColumns = []string{
	"username",
	"role",
	"is_venue_owner",
	"password_hash",
	"current_ip",
	"ip_history",
	"ban_strike_count",
	"is_permanent_ban",
	"is_globally_muted",
	"created_at",
	"version",
}

// UserRepository implements ports.UserRepository. Ban-record writes are
// compare-and-update on the version column.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{exec: exec, builder: newBuilder()}
}

var _ ports.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	ipHistory := user.IPHistory
	if ipHistory == nil {
		ipHistory = []string{}
	}

	stmt, args, err := r.builder.Insert("users").
		Columns(userColumns...).
		Values(
			user.Username,
			string(user.Role),
			user.IsVenueOwner,
			user.PasswordHash,
			user.CurrentIP,
			ipHistory,
			user.BanStrikeCount,
			user.IsPermanentBan,
			user.IsGloballyMuted,
			user.CreatedAt,
			user.Version,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrUserExists, user.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		user domain.User
		role string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&user.Username,
		&role,
		&user.IsVenueOwner,
		&user.PasswordHash,
		&user.CurrentIP,
		&user.IPHistory,
		&user.BanStrikeCount,
		&user.IsPermanentBan,
		&user.IsGloballyMuted,
		&user.CreatedAt,
		&user.Version,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Role = domain.Role(role)
	return &user, nil
}

func (r *UserRepository) UpdateBanRecord(ctx context.Context, user *domain.User, expectedVersion int64) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "postgresql", "update_ban_record", "users")
	defer span.End()

	stmt, args, err := r.builder.Update("users").
		Set("current_ip", user.CurrentIP).
		Set("ip_history", user.IPHistory).
		Set("ban_strike_count", user.BanStrikeCount).
		Set("is_permanent_ban", user.IsPermanentBan).
		Set("is_globally_muted", user.IsGloballyMuted).
		Set("version", user.Version).
		Where(squirrel.Eq{"username": user.Username}).
		Where(squirrel.Eq{"version": expectedVersion}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update ban record sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update ban record: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// zero rows: either the user is gone or the version moved on
	if _, err := r.GetByUsername(ctx, user.Username); err != nil {
		return err
	}
	return fmt.Errorf("%w: user %s no longer at version %d",
		domain.ErrConcurrentUpdateConflict, user.Username, expectedVersion)
}

func (r *UserRepository) UpdateCurrentIP(ctx context.Context, username, ip string) error {
	return r.updateColumn(ctx, username, "current_ip", ip)
}

func (r *UserRepository) UpdateRole(ctx context.Context, username string, role domain.Role) error {
	return r.updateColumn(ctx, username, "role", string(role))
}

func (r *UserRepository) SetVenueOwner(ctx context.Context, username string, owner bool) error {
	return r.updateColumn(ctx, username, "is_venue_owner", owner)
}

func (r *UserRepository) updateColumn(ctx context.Context, username, column string, value any) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "postgresql", "update", "users")
	defer span.End()

	stmt, args, err := r.builder.Update("users").
		Set(column, value).
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update %s sql: %w", column, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
