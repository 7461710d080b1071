package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/pkg/tracing"
)

var bookingColumns = []string{
	"id",
	"dj_username",
	"dj_name",
	"venue_name",
	"streaming_link",
	"weekday",
	"hour",
	"minute",
	"status",
	"created_at",
}

type BookingRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewBookingRepository(exec pgExecutor) *BookingRepository {
	return &BookingRepository{exec: exec, builder: newBuilder()}
}

var _ ports.BookingRepository = (*BookingRepository)(nil)

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "postgresql", "insert", "bookings")
	defer span.End()

	stmt, args, err := r.builder.Insert("bookings").
		Columns(bookingColumns...).
		Values(
			string(b.ID),
			b.DJUsername,
			b.DJName,
			b.VenueName,
			b.StreamingLink,
			int(b.RecurrenceAnchor.Weekday),
			b.RecurrenceAnchor.Hour,
			b.RecurrenceAnchor.Minute,
			string(b.Status),
			b.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	stmt, args, err := r.builder.
		Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": string(id)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select booking sql: %w", err)
	}

	b, err := scanBooking(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	return b, nil
}

// UpdateStatus is a compare-and-update on the status column.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id domain.BookingID, from, to domain.BookingStatus) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "postgresql", "update_status", "bookings")
	defer span.End()

	stmt, args, err := r.builder.Update("bookings").
		Set("status", string(to)).
		Where(squirrel.Eq{"id": string(id), "status": string(from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// zero rows: either the booking is gone or its status moved on
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: booking %s is %s, not %s",
			domain.ErrConcurrentUpdateConflict, id, current.Status, from)
	}
	return nil
}

func (r *BookingRepository) ListByDJ(ctx context.Context, djUsername string) ([]*domain.Booking, error) {
	return r.list(ctx, squirrel.Eq{"dj_username": djUsername})
}

func (r *BookingRepository) ListByVenue(ctx context.Context, venueName string) ([]*domain.Booking, error) {
	return r.list(ctx, squirrel.Eq{"venue_name": venueName})
}

func (r *BookingRepository) list(ctx context.Context, where squirrel.Eq) ([]*domain.Booking, error) {
	stmt, args, err := r.builder.
		Select(bookingColumns...).
		From("bookings").
		Where(where).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b                     domain.Booking
		id, status            string
		weekday, hour, minute int
		createdAt             time.Time
	)
	if err := row.Scan(
		&id,
		&b.DJUsername,
		&b.DJName,
		&b.VenueName,
		&b.StreamingLink,
		&weekday,
		&hour,
		&minute,
		&status,
		&createdAt,
	); err != nil {
		return nil, err
	}

	b.ID = domain.BookingID(id)
	b.Status = domain.BookingStatus(status)
	b.CreatedAt = createdAt
	b.RecurrenceAnchor = domain.RecurrenceAnchor{Weekday: time.Weekday(weekday), Hour: hour, Minute: minute}
	return &b, nil
}
