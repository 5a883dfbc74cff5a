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

// slotColumns is the standard SELECT column list for slots.
const slotColumns = `id, destination_id, slot_date, start_time, end_time,
	capacity, booked_count, is_active, created_at, updated_at`

// SlotRepository implements slot persistence using PostgreSQL.
type SlotRepository struct {
	pool database.DBTX
}

// NewSlotRepository creates a new PostgreSQL-backed slot repository.
func NewSlotRepository(pool database.DBTX) *SlotRepository {
	return &SlotRepository{pool: pool}
}

// Create inserts a new slot into the database.
func (r *SlotRepository) Create(ctx context.Context, s *domain.Slot) error {
	query := `
		INSERT INTO slots (id, destination_id, slot_date, start_time, end_time,
			capacity, booked_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.DestinationID,
		s.SlotDate,
		s.StartTime,
		s.EndTime,
		s.Capacity,
		s.BookedCount,
		s.IsActive,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("slot", "date/start_time", fmt.Sprintf("%s %s", s.SlotDate.Format("2006-01-02"), s.StartTime))
		}
		return fmt.Errorf("insert slot: %w", err)
	}

	return nil
}

// GetByID retrieves a slot by its unique identifier.
func (r *SlotRepository) GetByID(ctx context.Context, id string) (*domain.Slot, error) {
	query := fmt.Sprintf(`SELECT %s FROM slots WHERE id = $1`, slotColumns)

	var s domain.Slot
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.DestinationID,
		&s.SlotDate,
		&s.StartTime,
		&s.EndTime,
		&s.Capacity,
		&s.BookedCount,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan slot: %w", err)
	}

	return &s, nil
}

// List returns slots for a destination within the filter's date window,
// ordered by date then start time.
func (r *SlotRepository) List(ctx context.Context, filter repository.SlotFilter) ([]domain.Slot, error) {
	conditions := []string{"destination_id = $1", "slot_date >= $2", "slot_date <= $3"}
	args := []any{filter.DestinationID, filter.From, filter.To}

	if !filter.IncludeInactive {
		conditions = append(conditions, "is_active = true")
	}
	if filter.OnlyAvailable {
		conditions = append(conditions, "capacity > booked_count")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM slots
		WHERE %s
		ORDER BY slot_date, start_time`,
		slotColumns, strings.Join(conditions, " AND "),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	slots := make([]domain.Slot, 0)
	for rows.Next() {
		var s domain.Slot
		if err := rows.Scan(
			&s.ID,
			&s.DestinationID,
			&s.SlotDate,
			&s.StartTime,
			&s.EndTime,
			&s.Capacity,
			&s.BookedCount,
			&s.IsActive,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan slot row: %w", err)
		}
		slots = append(slots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot rows: %w", err)
	}

	return slots, nil
}

// Update modifies a slot's schedule and capacity. booked_count is never
// written here; only booking transactions adjust it.
func (r *SlotRepository) Update(ctx context.Context, s *domain.Slot) error {
	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE slots
		SET slot_date = $1, start_time = $2, end_time = $3, capacity = $4,
		    is_active = $5, updated_at = $6
		WHERE id = $7`

	ct, err := r.pool.Exec(ctx, query,
		s.SlotDate,
		s.StartTime,
		s.EndTime,
		s.Capacity,
		s.IsActive,
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("slot", "date/start_time", fmt.Sprintf("%s %s", s.SlotDate.Format("2006-01-02"), s.StartTime))
		}
		return fmt.Errorf("update slot: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("slot", s.ID)
	}

	return nil
}

// Deactivate stops a slot from accepting new bookings without touching
// existing reservations.
func (r *SlotRepository) Deactivate(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE slots SET is_active = false, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate slot: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("slot", id)
	}

	return nil
}
