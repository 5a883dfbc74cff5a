package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/pkg/database"
	apperrors "github.com/fawwazmw/travelease-api/pkg/errors"
)

// reviewColumns is the standard SELECT column list for reviews.
const reviewColumns = `id, user_id, destination_id, booking_id, rating, comment,
	status, images, created_at, updated_at`

// recomputeRatingQuery rewrites the destination aggregate from approved
// reviews. COALESCE handles the zero-review case.
const recomputeRatingQuery = `
	UPDATE destinations
	SET average_rating = COALESCE(
			(SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews WHERE destination_id = $1 AND status = 'approved'), 0),
	    total_reviews = (SELECT count(*) FROM reviews WHERE destination_id = $1 AND status = 'approved'),
	    updated_at = $2
	WHERE id = $1`

// ReviewRepository implements review persistence using PostgreSQL. Status
// changes and deletes recompute the destination rating aggregate in the same
// transaction so the cached columns never drift from the review rows.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	imagesJSON, err := marshalImages(rv.Images)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reviews (id, user_id, destination_id, booking_id, rating, comment,
			status, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		rv.ID,
		rv.UserID,
		rv.DestinationID,
		rv.BookingID,
		rv.Rating,
		rv.Comment,
		rv.Status,
		imagesJSON,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "user/destination", rv.UserID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its unique identifier.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)

	rv, err := scanReviewRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}

	return rv, nil
}

// ExistsForUserAndDestination reports whether the user already has a review
// for the destination, in any moderation status.
func (r *ReviewRepository) ExistsForUserAndDestination(ctx context.Context, userID, destinationID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reviews WHERE user_id = $1 AND destination_id = $2)`,
		userID, destinationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check review existence: %w", err)
	}
	return exists, nil
}

// ListApprovedByDestination returns approved reviews for a destination with
// the total count, newest first.
func (r *ReviewRepository) ListApprovedByDestination(ctx context.Context, destinationID string, page, perPage int) ([]domain.Review, int, error) {
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM reviews
		WHERE destination_id = $1 AND status = 'approved'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		reviewColumns,
	)

	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	rows, err := r.pool.Query(ctx, query, destinationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list approved reviews: %w", err)
	}
	defer rows.Close()

	var totalCount int
	reviews := make([]domain.Review, 0)

	for rows.Next() {
		var (
			rv         domain.Review
			imagesJSON []byte
		)

		if err := rows.Scan(
			&rv.ID,
			&rv.UserID,
			&rv.DestinationID,
			&rv.BookingID,
			&rv.Rating,
			&rv.Comment,
			&rv.Status,
			&imagesJSON,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}

		if err := unmarshalImages(imagesJSON, &rv.Images); err != nil {
			return nil, 0, err
		}

		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, totalCount, nil
}

// SetStatus updates the review's moderation status and recomputes the
// destination aggregate in the same transaction. Returns the updated review.
func (r *ReviewRepository) SetStatus(ctx context.Context, id, status string) (*domain.Review, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE reviews
		SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING %s`, reviewColumns)

	rv, err := scanReviewRow(tx.QueryRow(ctx, query, status, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("update review status: %w", err)
	}

	if _, err := tx.Exec(ctx, recomputeRatingQuery, rv.DestinationID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("recompute destination rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return rv, nil
}

// Delete removes a review and recomputes the destination aggregate in the
// same transaction.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var destinationID string
	err = tx.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING destination_id`, id).Scan(&destinationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("review", id)
		}
		return fmt.Errorf("delete review: %w", err)
	}

	if _, err := tx.Exec(ctx, recomputeRatingQuery, destinationID, time.Now().UTC()); err != nil {
		return fmt.Errorf("recompute destination rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// scanReviewRow scans a single review row, including the JSON images column.
func scanReviewRow(row pgx.Row) (*domain.Review, error) {
	var (
		rv         domain.Review
		imagesJSON []byte
	)

	err := row.Scan(
		&rv.ID,
		&rv.UserID,
		&rv.DestinationID,
		&rv.BookingID,
		&rv.Rating,
		&rv.Comment,
		&rv.Status,
		&imagesJSON,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalImages(imagesJSON, &rv.Images); err != nil {
		return nil, err
	}

	return &rv, nil
}
