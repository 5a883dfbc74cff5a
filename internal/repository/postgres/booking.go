package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/internal/repository"
	"github.com/fawwazmw/travelease-api/pkg/database"
	apperrors "github.com/fawwazmw/travelease-api/pkg/errors"
)

// bookingColumns is the standard SELECT column list for bookings.
const bookingColumns = `id, booking_code, user_id, destination_id, slot_id, visit_date,
	num_tickets, total_price, status, payment_method, payment_reference,
	payment_details, created_at, updated_at`

// reserveSlotQuery atomically claims capacity. The guard lives in the WHERE
// clause so two concurrent bookings can never both win the last ticket.
const reserveSlotQuery = `
	UPDATE slots
	SET booked_count = booked_count + $1, updated_at = $2
	WHERE id = $3
	  AND destination_id = $4
	  AND slot_date = $5
	  AND is_active = true
	  AND capacity - booked_count >= $1`

// releaseSlotQuery returns capacity, floored at zero so a stray double
// release cannot drive booked_count negative.
const releaseSlotQuery = `
	UPDATE slots
	SET booked_count = GREATEST(booked_count - $1, 0), updated_at = $2
	WHERE id = $3`

// BookingRepository implements booking persistence using PostgreSQL.
type BookingRepository struct {
	pool database.DBTX
}

// NewBookingRepository creates a new PostgreSQL-backed booking repository.
func NewBookingRepository(pool database.DBTX) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// Create inserts a booking, reserving slot capacity in the same transaction
// when a slot is attached. Either both writes commit or neither does.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if b.SlotID != nil {
		ct, err := tx.Exec(ctx, reserveSlotQuery,
			b.NumTickets,
			time.Now().UTC(),
			*b.SlotID,
			b.DestinationID,
			b.VisitDate,
		)
		if err != nil {
			return fmt.Errorf("reserve slot capacity: %w", err)
		}

		if ct.RowsAffected() == 0 {
			return r.classifyReserveFailure(ctx, tx, b)
		}
	}

	query := `
		INSERT INTO bookings (id, booking_code, user_id, destination_id, slot_id, visit_date,
			num_tickets, total_price, status, payment_method, payment_reference,
			payment_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = tx.Exec(ctx, query,
		b.ID,
		b.BookingCode,
		b.UserID,
		b.DestinationID,
		b.SlotID,
		b.VisitDate,
		b.NumTickets,
		b.TotalPrice,
		b.Status,
		b.PaymentMethod,
		b.PaymentReference,
		b.PaymentDetails,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("booking", "booking_code", b.BookingCode)
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// classifyReserveFailure turns a failed conditional reserve into the precise
// error the caller should surface. The follow-up read is for diagnostics
// only; the conditional UPDATE remains the single source of truth.
func (r *BookingRepository) classifyReserveFailure(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	var (
		destinationID string
		slotDate      time.Time
		isActive      bool
		capacity      int
		bookedCount   int
	)

	err := tx.QueryRow(ctx,
		`SELECT destination_id, slot_date, is_active, capacity, booked_count FROM slots WHERE id = $1`,
		*b.SlotID,
	).Scan(&destinationID, &slotDate, &isActive, &capacity, &bookedCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("slot", *b.SlotID)
		}
		return fmt.Errorf("inspect slot after failed reserve: %w", err)
	}

	switch {
	case destinationID != b.DestinationID:
		return apperrors.UnprocessableEntity("INVALID_SLOT", "slot does not belong to the destination")
	case !slotDate.Equal(b.VisitDate):
		return apperrors.UnprocessableEntity("INVALID_SLOT", "slot date does not match the visit date")
	case !isActive:
		return apperrors.UnprocessableEntity("INVALID_SLOT", "slot is not active")
	default:
		return apperrors.CapacityExceeded(fmt.Sprintf(
			"slot has %d of %d requested tickets remaining", capacity-bookedCount, b.NumTickets))
	}
}

// GetByID retrieves a booking by its unique identifier.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	return r.scanBooking(ctx, query, id)
}

// GetByCode retrieves a booking by its human-facing booking code.
func (r *BookingRepository) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE booking_code = $1`, bookingColumns)
	return r.scanBooking(ctx, query, code)
}

// List returns bookings matching the given filter with the total count,
// newest first.
func (r *BookingRepository) List(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM bookings
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		bookingColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var totalCount int
	bookings := make([]domain.Booking, 0)

	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID,
			&b.BookingCode,
			&b.UserID,
			&b.DestinationID,
			&b.SlotID,
			&b.VisitDate,
			&b.NumTickets,
			&b.TotalPrice,
			&b.Status,
			&b.PaymentMethod,
			&b.PaymentReference,
			&b.PaymentDetails,
			&b.CreatedAt,
			&b.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate booking rows: %w", err)
	}

	return bookings, totalCount, nil
}

// UpdateStatus changes the booking status, releasing slot capacity in the
// same transaction when requested.
func (r *BookingRepository) UpdateStatus(ctx context.Context, b *domain.Booking, newStatus string, releaseSlot bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	ct, err := tx.Exec(ctx,
		`UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		newStatus, now, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("booking", b.ID)
	}

	if releaseSlot && b.SlotID != nil {
		if _, err := tx.Exec(ctx, releaseSlotQuery, b.NumTickets, now, *b.SlotID); err != nil {
			return fmt.Errorf("release slot capacity: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// SetPayment records payment details on a booking.
func (r *BookingRepository) SetPayment(ctx context.Context, id, method, reference string, details []byte) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE bookings SET payment_method = $1, payment_reference = $2, payment_details = $3, updated_at = $4 WHERE id = $5`,
		method, reference, details, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set booking payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("booking", id)
	}
	return nil
}

// ExpirePending transitions pending bookings created before the cutoff to
// expired and returns their held slot capacity, all in one transaction.
func (r *BookingRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	// Release capacity first, while the bookings still match the pending
	// predicate.
	_, err = tx.Exec(ctx, `
		UPDATE slots s
		SET booked_count = GREATEST(s.booked_count - b.num_tickets, 0), updated_at = $1
		FROM bookings b
		WHERE b.slot_id = s.id
		  AND b.status = 'pending'
		  AND b.created_at < $2`,
		now, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("release expired slot capacity: %w", err)
	}

	ct, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'expired', updated_at = $1
		WHERE status = 'pending'
		  AND created_at < $2`,
		now, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("expire pending bookings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// scanBooking executes a query expected to return a single booking row.
func (r *BookingRepository) scanBooking(ctx context.Context, query string, args ...any) (*domain.Booking, error) {
	var b domain.Booking

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&b.ID,
		&b.BookingCode,
		&b.UserID,
		&b.DestinationID,
		&b.SlotID,
		&b.VisitDate,
		&b.NumTickets,
		&b.TotalPrice,
		&b.Status,
		&b.PaymentMethod,
		&b.PaymentReference,
		&b.PaymentDetails,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}

	return &b, nil
}
