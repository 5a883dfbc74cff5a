package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/internal/event"
	"github.com/fawwazmw/travelease-api/internal/repository"
	apperrors "github.com/fawwazmw/travelease-api/pkg/errors"
)

// ReviewService implements review submission, moderation and the destination
// rating aggregate they drive.
type ReviewService struct {
	reviews      repository.ReviewRepository
	bookings     repository.BookingRepository
	destinations repository.DestinationRepository
	producer     *event.Producer
	cache        DestinationCache
	logger       *slog.Logger
}

// NewReviewService creates a new review service. cache may be nil.
func NewReviewService(
	reviews repository.ReviewRepository,
	bookings repository.BookingRepository,
	destinations repository.DestinationRepository,
	producer *event.Producer,
	cache DestinationCache,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:      reviews,
		bookings:     bookings,
		destinations: destinations,
		producer:     producer,
		cache:        cache,
		logger:       logger,
	}
}

// CreateReviewInput holds the parameters for submitting a review.
type CreateReviewInput struct {
	DestinationID string   `json:"destination_id" validate:"required,uuid"`
	BookingID     *string  `json:"booking_id" validate:"omitempty,uuid"`
	Rating        int      `json:"rating" validate:"required,gte=1,lte=5"`
	Comment       string   `json:"comment" validate:"max=2000"`
	Images        []string `json:"images" validate:"max=5"`
}

// CreateReview submits a review in pending status. A user gets one review per
// destination, regardless of how an earlier one was moderated.
func (s *ReviewService) CreateReview(ctx context.Context, userID string, input CreateReviewInput) (*domain.Review, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.InvalidInput("rating must be between 1 and 5")
	}

	dest, err := s.destinations.GetByID(ctx, input.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}
	if !dest.IsActive {
		return nil, apperrors.NotFound("destination", input.DestinationID)
	}

	exists, err := s.reviews.ExistsForUserAndDestination(ctx, userID, input.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return nil, apperrors.UnprocessableEntity("DUPLICATE_REVIEW", "you have already reviewed this destination")
	}

	if input.BookingID != nil {
		booking, err := s.bookings.GetByID(ctx, *input.BookingID)
		if err != nil {
			return nil, fmt.Errorf("resolve booking: %w", err)
		}
		if booking.UserID != userID {
			return nil, apperrors.NotEligible("booking belongs to another user")
		}
		if booking.DestinationID != input.DestinationID {
			return nil, apperrors.NotEligible("booking is for another destination")
		}
		if booking.Status != domain.BookingStatusCompleted {
			return nil, apperrors.NotEligible("only completed bookings can back a review")
		}
	}

	now := nowUTC()
	review := &domain.Review{
		ID:            uuid.New().String(),
		UserID:        userID,
		DestinationID: input.DestinationID,
		BookingID:     input.BookingID,
		Rating:        input.Rating,
		Comment:       input.Comment,
		Status:        domain.ReviewStatusPending,
		Images:        input.Images,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	if err := s.producer.PublishReviewSubmitted(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.submitted event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("review_id", review.ID),
		slog.String("destination_id", review.DestinationID),
		slog.Int("rating", review.Rating),
	)

	return review, nil
}

// GetReview retrieves a review. Pending and rejected reviews are visible only
// to their author and admins.
func (s *ReviewService) GetReview(ctx context.Context, id, requesterID, role string) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get review by id: %w", err)
	}

	if review.Status != domain.ReviewStatusApproved &&
		review.UserID != requesterID && role != RoleAdmin {
		return nil, apperrors.NotFound("review", id)
	}

	return review, nil
}

// ListDestinationReviews returns the approved reviews of a destination,
// resolved by slug, newest first.
func (s *ReviewService) ListDestinationReviews(ctx context.Context, destSlug string, page, perPage int) ([]domain.Review, int, error) {
	dest, err := s.destinations.GetBySlug(ctx, destSlug)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve destination: %w", err)
	}
	if !dest.IsActive {
		return nil, 0, apperrors.NotFound("destination", destSlug)
	}

	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	reviews, total, err := s.reviews.ListApprovedByDestination(ctx, dest.ID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list destination reviews: %w", err)
	}

	return reviews, total, nil
}

// ModerateReview approves or rejects a review (admin action). The destination
// aggregate is recomputed transactionally with the status change.
func (s *ReviewService) ModerateReview(ctx context.Context, id, status string) (*domain.Review, error) {
	if status != domain.ReviewStatusApproved && status != domain.ReviewStatusRejected {
		return nil, apperrors.InvalidInput(fmt.Sprintf("status must be %q or %q",
			domain.ReviewStatusApproved, domain.ReviewStatusRejected))
	}

	review, err := s.reviews.SetStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("moderate review: %w", err)
	}

	if err := s.producer.PublishReviewModerated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.moderated event",
			slog.String("review_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.publishRatingUpdate(ctx, review.DestinationID)

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("review_id", id),
		slog.String("status", status),
	)

	return review, nil
}

// DeleteReview removes a review (owner or admin) and recomputes the
// destination aggregate.
func (s *ReviewService) DeleteReview(ctx context.Context, id, requesterID, role string) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get review for delete: %w", err)
	}

	if review.UserID != requesterID && role != RoleAdmin {
		return apperrors.Forbidden("review belongs to another user")
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if err := s.producer.PublishReviewDeleted(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.deleted event",
			slog.String("review_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.publishRatingUpdate(ctx, review.DestinationID)

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", id),
		slog.String("destination_id", review.DestinationID),
	)

	return nil
}

// publishRatingUpdate reads the freshly recomputed aggregate, announces it,
// and drops the stale cache entry.
func (s *ReviewService) publishRatingUpdate(ctx context.Context, destinationID string) {
	dest, err := s.destinations.GetByID(ctx, destinationID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to reload destination after rating recompute",
			slog.String("destination_id", destinationID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.producer.PublishRatingUpdated(ctx, dest.ID, dest.AverageRating, dest.TotalReviews); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish destination.rating_updated event",
			slog.String("destination_id", dest.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, dest.Slug); err != nil {
			s.logger.WarnContext(ctx, "destination cache invalidation failed",
				slog.String("slug", dest.Slug),
				slog.String("error", err.Error()),
			)
		}
	}
}
