package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
)

type VenueRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewVenueRepository(exec pgExecutor) *VenueRepository {
	return &VenueRepository{exec: exec, builder: newBuilder()}
}

var _ ports.VenueRepository = (*VenueRepository)(nil)

func (r *VenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	stmt, args, err := r.builder.Insert("venues").
		Columns("name", "owner_username", "is_open", "created_at").
		Values(venue.Name, venue.OwnerUsername, venue.IsOpen, venue.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert venue sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrVenueExists, venue.Name)
		}
		return fmt.Errorf("insert venue: %w", err)
	}
	return nil
}

func (r *VenueRepository) GetByName(ctx context.Context, name string) (*domain.Venue, error) {
	stmt, args, err := r.builder.
		Select("name", "owner_username", "is_open", "created_at").
		From("venues").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select venue sql: %w", err)
	}

	var venue domain.Venue
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&venue.Name,
		&venue.OwnerUsername,
		&venue.IsOpen,
		&venue.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVenueNotFound
		}
		return nil, fmt.Errorf("scan venue: %w", err)
	}
	return &venue, nil
}

func (r *VenueRepository) Update(ctx context.Context, venue *domain.Venue) error {
	stmt, args, err := r.builder.Update("venues").
		Set("owner_username", venue.OwnerUsername).
		Set("is_open", venue.IsOpen).
		Where(squirrel.Eq{"name": venue.Name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update venue sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update venue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVenueNotFound
	}
	return nil
}
