package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/internal/repository"
	apperrors "github.com/fawwazmw/travelease-api/pkg/errors"
	"github.com/fawwazmw/travelease-api/pkg/slug"
)

// maxSlugAttempts bounds the -N suffix search for a free slug.
const maxSlugAttempts = 50

// DestinationCache is a read cache for destination detail lookups. A miss is
// (nil, nil). Implementations must tolerate being nil-checked by the service.
type DestinationCache interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Destination, error)
	Set(ctx context.Context, d *domain.Destination) error
	Invalidate(ctx context.Context, slug string) error
}

// CatalogService implements the business logic for categories and destinations.
type CatalogService struct {
	categories   repository.CategoryRepository
	destinations repository.DestinationRepository
	cache        DestinationCache
	logger       *slog.Logger
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(
	categories repository.CategoryRepository,
	destinations repository.DestinationRepository,
	cache DestinationCache,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		categories:   categories,
		destinations: destinations,
		cache:        cache,
		logger:       logger,
	}
}

// --- Categories ---

// CreateCategoryInput holds the parameters for creating a category.
type CreateCategoryInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// CreateCategory creates a new category with a slug derived from its name.
func (s *CatalogService) CreateCategory(ctx context.Context, input CreateCategoryInput) (*domain.Category, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	categorySlug, err := s.uniqueSlug(ctx, input.Name, s.categories.SlugExists)
	if err != nil {
		return nil, err
	}

	now := nowUTC()
	category := &domain.Category{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Slug:        categorySlug,
		Description: input.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.categories.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", category.ID),
		slog.String("slug", category.Slug),
	)

	return category, nil
}

// GetCategoryBySlug retrieves an active category by slug.
func (s *CatalogService) GetCategoryBySlug(ctx context.Context, categorySlug string) (*domain.Category, error) {
	category, err := s.categories.GetBySlug(ctx, categorySlug)
	if err != nil {
		return nil, fmt.Errorf("get category by slug: %w", err)
	}
	if !category.IsActive {
		return nil, apperrors.NotFound("category", categorySlug)
	}
	return category, nil
}

// ListCategories returns categories, including inactive ones for admins.
func (s *CatalogService) ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// UpdateCategoryInput holds the updatable category fields.
type UpdateCategoryInput struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateCategory applies a partial update to a category. Renaming regenerates
// the slug.
func (s *CatalogService) UpdateCategory(ctx context.Context, id string, input UpdateCategoryInput) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category for update: %w", err)
	}

	if input.Name != nil && *input.Name != category.Name {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		newSlug, err := s.uniqueSlug(ctx, *input.Name, s.categories.SlugExists)
		if err != nil {
			return nil, err
		}
		category.Name = *input.Name
		category.Slug = newSlug
	}
	if input.Description != nil {
		category.Description = *input.Description
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	if err := s.categories.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.logger.InfoContext(ctx, "category updated", slog.String("category_id", id))

	return category, nil
}

// DeleteCategory removes a category. Destinations keep a NULL category_id.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.logger.InfoContext(ctx, "category deleted", slog.String("category_id", id))
	return nil
}

// --- Destinations ---

// CreateDestinationInput holds the parameters for creating a destination.
type CreateDestinationInput struct {
	Name             string   `json:"name" validate:"required,min=2,max=200"`
	Description      string   `json:"description" validate:"max=5000"`
	Address          string   `json:"address" validate:"max=500"`
	Latitude         *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CategoryID       *string  `json:"category_id" validate:"omitempty,uuid"`
	TicketPrice      int64    `json:"ticket_price" validate:"gte=0"`
	OperationalHours string   `json:"operational_hours" validate:"max=200"`
	ContactPhone     string   `json:"contact_phone" validate:"max=30"`
	ContactEmail     string   `json:"contact_email" validate:"omitempty,email"`
	Images           []string `json:"images" validate:"max=10"`
}

// CreateDestination creates a new destination. The requesting admin is
// recorded as created_by.
func (s *CatalogService) CreateDestination(ctx context.Context, createdBy string, input CreateDestinationInput) (*domain.Destination, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.TicketPrice < 0 {
		return nil, apperrors.InvalidInput("ticket_price must not be negative")
	}

	if input.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *input.CategoryID); err != nil {
			return nil, fmt.Errorf("resolve category: %w", err)
		}
	}

	destSlug, err := s.uniqueSlug(ctx, input.Name, s.destinations.SlugExists)
	if err != nil {
		return nil, err
	}

	now := nowUTC()
	dest := &domain.Destination{
		ID:               uuid.New().String(),
		Name:             input.Name,
		Slug:             destSlug,
		Description:      input.Description,
		Address:          input.Address,
		Latitude:         input.Latitude,
		Longitude:        input.Longitude,
		CategoryID:       input.CategoryID,
		CreatedBy:        createdBy,
		TicketPrice:      input.TicketPrice,
		OperationalHours: input.OperationalHours,
		ContactPhone:     input.ContactPhone,
		ContactEmail:     input.ContactEmail,
		Images:           input.Images,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.destinations.Create(ctx, dest); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	s.logger.InfoContext(ctx, "destination created",
		slog.String("destination_id", dest.ID),
		slog.String("slug", dest.Slug),
	)

	return dest, nil
}

// GetDestinationBySlug retrieves a destination by slug, consulting the cache
// first. Inactive destinations are hidden from non-admin callers.
func (s *CatalogService) GetDestinationBySlug(ctx context.Context, destSlug string, includeInactive bool) (*domain.Destination, error) {
	if s.cache != nil && !includeInactive {
		cached, err := s.cache.GetBySlug(ctx, destSlug)
		if err != nil {
			s.logger.WarnContext(ctx, "destination cache read failed",
				slog.String("slug", destSlug),
				slog.String("error", err.Error()),
			)
		} else if cached != nil {
			return cached, nil
		}
	}

	dest, err := s.destinations.GetBySlug(ctx, destSlug)
	if err != nil {
		return nil, fmt.Errorf("get destination by slug: %w", err)
	}

	if !dest.IsActive && !includeInactive {
		return nil, apperrors.NotFound("destination", destSlug)
	}

	if s.cache != nil && dest.IsActive {
		if err := s.cache.Set(ctx, dest); err != nil {
			s.logger.WarnContext(ctx, "destination cache write failed",
				slog.String("slug", destSlug),
				slog.String("error", err.Error()),
			)
		}
	}

	return dest, nil
}

// ListDestinations returns a filtered, paginated destination list.
func (s *CatalogService) ListDestinations(ctx context.Context, filter repository.DestinationFilter) ([]domain.Destination, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	destinations, total, err := s.destinations.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list destinations: %w", err)
	}

	return destinations, total, nil
}

// UpdateDestinationInput holds the updatable destination fields. Rating
// aggregate fields are excluded; the review aggregator owns them.
type UpdateDestinationInput struct {
	Name             *string  `json:"name" validate:"omitempty,min=2,max=200"`
	Description      *string  `json:"description" validate:"omitempty,max=5000"`
	Address          *string  `json:"address" validate:"omitempty,max=500"`
	Latitude         *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CategoryID       *string  `json:"category_id" validate:"omitempty,uuid"`
	TicketPrice      *int64   `json:"ticket_price" validate:"omitempty,gte=0"`
	OperationalHours *string  `json:"operational_hours" validate:"omitempty,max=200"`
	ContactPhone     *string  `json:"contact_phone" validate:"omitempty,max=30"`
	ContactEmail     *string  `json:"contact_email" validate:"omitempty,email"`
	Images           []string `json:"images" validate:"omitempty,max=10"`
	IsActive         *bool    `json:"is_active"`
}

// UpdateDestination applies a partial update. Renaming regenerates the slug
// and the old cache entry is invalidated.
func (s *CatalogService) UpdateDestination(ctx context.Context, id string, input UpdateDestinationInput) (*domain.Destination, error) {
	dest, err := s.destinations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get destination for update: %w", err)
	}

	oldSlug := dest.Slug

	if input.Name != nil && *input.Name != dest.Name {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		newSlug, err := s.uniqueSlug(ctx, *input.Name, s.destinations.SlugExists)
		if err != nil {
			return nil, err
		}
		dest.Name = *input.Name
		dest.Slug = newSlug
	}
	if input.Description != nil {
		dest.Description = *input.Description
	}
	if input.Address != nil {
		dest.Address = *input.Address
	}
	if input.Latitude != nil {
		dest.Latitude = input.Latitude
	}
	if input.Longitude != nil {
		dest.Longitude = input.Longitude
	}
	if input.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *input.CategoryID); err != nil {
			return nil, fmt.Errorf("resolve category: %w", err)
		}
		dest.CategoryID = input.CategoryID
	}
	if input.TicketPrice != nil {
		if *input.TicketPrice < 0 {
			return nil, apperrors.InvalidInput("ticket_price must not be negative")
		}
		dest.TicketPrice = *input.TicketPrice
	}
	if input.OperationalHours != nil {
		dest.OperationalHours = *input.OperationalHours
	}
	if input.ContactPhone != nil {
		dest.ContactPhone = *input.ContactPhone
	}
	if input.ContactEmail != nil {
		dest.ContactEmail = *input.ContactEmail
	}
	if input.Images != nil {
		dest.Images = input.Images
	}
	if input.IsActive != nil {
		dest.IsActive = *input.IsActive
	}

	if err := s.destinations.Update(ctx, dest); err != nil {
		return nil, fmt.Errorf("update destination: %w", err)
	}

	s.invalidateDestination(ctx, oldSlug)
	if dest.Slug != oldSlug {
		s.invalidateDestination(ctx, dest.Slug)
	}

	s.logger.InfoContext(ctx, "destination updated", slog.String("destination_id", id))

	return dest, nil
}

// DeleteDestination removes a destination. Destinations with booking history
// are deactivated instead so existing bookings keep a valid reference.
func (s *CatalogService) DeleteDestination(ctx context.Context, id string) error {
	dest, err := s.destinations.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get destination for delete: %w", err)
	}

	hasBookings, err := s.destinations.HasBookings(ctx, id)
	if err != nil {
		return fmt.Errorf("check destination bookings: %w", err)
	}

	if hasBookings {
		if err := s.destinations.Deactivate(ctx, id); err != nil {
			return fmt.Errorf("deactivate destination: %w", err)
		}
		s.logger.InfoContext(ctx, "destination deactivated",
			slog.String("destination_id", id),
			slog.String("reason", "existing bookings"),
		)
	} else {
		if err := s.destinations.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete destination: %w", err)
		}
		s.logger.InfoContext(ctx, "destination deleted", slog.String("destination_id", id))
	}

	s.invalidateDestination(ctx, dest.Slug)
	return nil
}

// InvalidateDestinationByID drops the cached detail entry for a destination.
// Used by the review service after a rating recompute.
func (s *CatalogService) InvalidateDestinationByID(ctx context.Context, id string) {
	dest, err := s.destinations.GetByID(ctx, id)
	if err != nil {
		return
	}
	s.invalidateDestination(ctx, dest.Slug)
}

func (s *CatalogService) invalidateDestination(ctx context.Context, destSlug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, destSlug); err != nil {
		s.logger.WarnContext(ctx, "destination cache invalidation failed",
			slog.String("slug", destSlug),
			slog.String("error", err.Error()),
		)
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// uniqueSlug derives a slug from name and appends -2, -3, ... until it is
// free according to exists.
func (s *CatalogService) uniqueSlug(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	base := slug.Generate(name)
	if base == "" {
		return "", apperrors.InvalidInput("name must contain at least one alphanumeric character")
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug availability: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	return "", apperrors.Conflict(fmt.Sprintf("could not find a free slug for %q", name))
}
