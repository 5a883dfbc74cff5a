package postgres

import (
	"context"
	"encoding/json"
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

// destinationColumns is the standard SELECT column list for destinations.
const destinationColumns = `id, name, slug, description, address, latitude, longitude,
	category_id, created_by, ticket_price, operational_hours, contact_phone,
	contact_email, average_rating, total_reviews, images, is_active, created_at, updated_at`

// DestinationRepository implements destination persistence using PostgreSQL.
type DestinationRepository struct {
	pool database.DBTX
}

// NewDestinationRepository creates a new PostgreSQL-backed destination repository.
func NewDestinationRepository(pool database.DBTX) *DestinationRepository {
	return &DestinationRepository{pool: pool}
}

// Create inserts a new destination into the database.
func (r *DestinationRepository) Create(ctx context.Context, d *domain.Destination) error {
	imagesJSON, err := marshalImages(d.Images)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO destinations (id, name, slug, description, address, latitude, longitude,
			category_id, created_by, ticket_price, operational_hours, contact_phone,
			contact_email, average_rating, total_reviews, images, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = r.pool.Exec(ctx, query,
		d.ID,
		d.Name,
		d.Slug,
		d.Description,
		d.Address,
		d.Latitude,
		d.Longitude,
		d.CategoryID,
		d.CreatedBy,
		d.TicketPrice,
		d.OperationalHours,
		d.ContactPhone,
		d.ContactEmail,
		d.AverageRating,
		d.TotalReviews,
		imagesJSON,
		d.IsActive,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("destination", "slug", d.Slug)
		}
		return fmt.Errorf("insert destination: %w", err)
	}

	return nil
}

// GetByID retrieves a destination by its unique identifier.
func (r *DestinationRepository) GetByID(ctx context.Context, id string) (*domain.Destination, error) {
	query := fmt.Sprintf(`SELECT %s FROM destinations WHERE id = $1`, destinationColumns)
	return r.scanDestination(ctx, query, id)
}

// GetBySlug retrieves a destination by its URL-friendly slug.
func (r *DestinationRepository) GetBySlug(ctx context.Context, slug string) (*domain.Destination, error) {
	query := fmt.Sprintf(`SELECT %s FROM destinations WHERE slug = $1`, destinationColumns)
	return r.scanDestination(ctx, query, slug)
}

// List returns destinations matching the given filter with the total count.
func (r *DestinationRepository) List(ctx context.Context, filter repository.DestinationFilter) ([]domain.Destination, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if !filter.IncludeInactive {
		conditions = append(conditions, "d.is_active = true")
	}

	if filter.CategorySlug != nil {
		conditions = append(conditions, fmt.Sprintf("c.slug = $%d", argIndex))
		args = append(args, *filter.CategorySlug)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(d.name ILIKE $%d OR d.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Sort column is resolved against a whitelist; user input never reaches
	// the ORDER BY clause directly.
	sortColumn, ok := domain.DestinationSortColumns()[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT d.id, d.name, d.slug, d.description, d.address, d.latitude, d.longitude,
			d.category_id, d.created_by, d.ticket_price, d.operational_hours, d.contact_phone,
			d.contact_email, d.average_rating, d.total_reviews, d.images, d.is_active,
			d.created_at, d.updated_at,
			count(*) OVER() AS total_count
		FROM destinations d
		LEFT JOIN categories c ON d.category_id = c.id
		%s
		ORDER BY d.%s %s
		LIMIT $%d OFFSET $%d`,
		whereClause, sortColumn, sortOrder, argIndex, argIndex+1,
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
		return nil, 0, fmt.Errorf("list destinations: %w", err)
	}
	defer rows.Close()

	var totalCount int
	destinations := make([]domain.Destination, 0)

	for rows.Next() {
		var (
			d          domain.Destination
			imagesJSON []byte
		)

		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Slug,
			&d.Description,
			&d.Address,
			&d.Latitude,
			&d.Longitude,
			&d.CategoryID,
			&d.CreatedBy,
			&d.TicketPrice,
			&d.OperationalHours,
			&d.ContactPhone,
			&d.ContactEmail,
			&d.AverageRating,
			&d.TotalReviews,
			&imagesJSON,
			&d.IsActive,
			&d.CreatedAt,
			&d.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan destination row: %w", err)
		}

		if err := unmarshalImages(imagesJSON, &d.Images); err != nil {
			return nil, 0, err
		}

		destinations = append(destinations, d)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate destination rows: %w", err)
	}

	return destinations, totalCount, nil
}

// Update modifies an existing destination. The rating aggregate columns are
// intentionally excluded; only the review repository writes them.
func (r *DestinationRepository) Update(ctx context.Context, d *domain.Destination) error {
	d.UpdatedAt = time.Now().UTC()

	imagesJSON, err := marshalImages(d.Images)
	if err != nil {
		return err
	}

	query := `
		UPDATE destinations
		SET name = $1, slug = $2, description = $3, address = $4, latitude = $5,
		    longitude = $6, category_id = $7, ticket_price = $8, operational_hours = $9,
		    contact_phone = $10, contact_email = $11, images = $12, is_active = $13,
		    updated_at = $14
		WHERE id = $15`

	ct, err := r.pool.Exec(ctx, query,
		d.Name,
		d.Slug,
		d.Description,
		d.Address,
		d.Latitude,
		d.Longitude,
		d.CategoryID,
		d.TicketPrice,
		d.OperationalHours,
		d.ContactPhone,
		d.ContactEmail,
		imagesJSON,
		d.IsActive,
		d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("destination", "slug", d.Slug)
		}
		return fmt.Errorf("update destination: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("destination", d.ID)
	}

	return nil
}

// Delete removes a destination row. The slots FK cascades; bookings restrict,
// so this fails with a foreign key violation when bookings exist.
func (r *DestinationRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM destinations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete destination: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("destination", id)
	}

	return nil
}

// Deactivate soft-deletes a destination by clearing its active flag.
func (r *DestinationRepository) Deactivate(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE destinations SET is_active = false, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate destination: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("destination", id)
	}

	return nil
}

// HasBookings reports whether any booking references the destination.
func (r *DestinationRepository) HasBookings(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE destination_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check destination bookings: %w", err)
	}
	return exists, nil
}

// SlugExists reports whether a destination with the given slug exists.
func (r *DestinationRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM destinations WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check destination slug: %w", err)
	}
	return exists, nil
}

// scanDestination executes a query expected to return a single destination row.
func (r *DestinationRepository) scanDestination(ctx context.Context, query string, args ...any) (*domain.Destination, error) {
	var (
		d          domain.Destination
		imagesJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&d.ID,
		&d.Name,
		&d.Slug,
		&d.Description,
		&d.Address,
		&d.Latitude,
		&d.Longitude,
		&d.CategoryID,
		&d.CreatedBy,
		&d.TicketPrice,
		&d.OperationalHours,
		&d.ContactPhone,
		&d.ContactEmail,
		&d.AverageRating,
		&d.TotalReviews,
		&imagesJSON,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan destination: %w", err)
	}

	if err := unmarshalImages(imagesJSON, &d.Images); err != nil {
		return nil, err
	}

	return &d, nil
}

func marshalImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	return data, nil
}

func unmarshalImages(data []byte, target *[]string) error {
	if len(data) == 0 || string(data) == "null" {
		*target = []string{}
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal images: %w", err)
	}
	return nil
}
