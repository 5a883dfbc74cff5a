package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fawwazmw/travelease-api/internal/auth"
	"github.com/fawwazmw/travelease-api/internal/service"
	"github.com/fawwazmw/travelease-api/pkg/health"
	"github.com/fawwazmw/travelease-api/pkg/middleware"
)

// RouterConfig bundles the collaborators the router mounts.
type RouterConfig struct {
	Catalog  *service.CatalogService
	Slots    *service.SlotService
	Bookings *service.BookingService
	Reviews  *service.ReviewService

	Verifier      *auth.Verifier
	HealthHandler *health.Handler
	Logger        *slog.Logger
	CORS          middleware.CORSConfig
	PprofCIDRs    []string

	// CatalogCacheMaxAge sets the Cache-Control max-age on public catalog
	// GETs, in seconds. Zero disables the header.
	CatalogCacheMaxAge int
}

// NewRouter creates a chi router with all TravelEase API routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("travelease"))
	r.Use(middleware.Tracing("travelease"))
	r.Use(middleware.RequestLogger(cfg.Logger))

	// Health check endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	categoryHandler := NewCategoryHandler(cfg.Catalog, cfg.Logger)
	destinationHandler := NewDestinationHandler(cfg.Catalog, cfg.Logger)
	slotHandler := NewSlotHandler(cfg.Slots, cfg.Catalog, cfg.Logger)
	bookingHandler := NewBookingHandler(cfg.Bookings, cfg.Logger)
	reviewHandler := NewReviewHandler(cfg.Reviews, cfg.Logger)

	// Token validator that bridges to the JWT verifier.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := cfg.Verifier.VerifyAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}

	// Public catalog endpoints
	r.Group(func(r chi.Router) {
		if cfg.CatalogCacheMaxAge > 0 {
			r.Use(middleware.CacheControl(cfg.CatalogCacheMaxAge))
		}

		r.Get("/api/v1/categories", categoryHandler.ListCategories)
		r.Get("/api/v1/categories/{slug}", categoryHandler.GetCategory)

		r.Get("/api/v1/destinations", destinationHandler.ListDestinations)
		r.Get("/api/v1/destinations/{slug}", destinationHandler.GetDestination)
		r.Get("/api/v1/destinations/{slug}/slots", slotHandler.ListDestinationSlots)
		r.Get("/api/v1/destinations/{slug}/reviews", reviewHandler.ListDestinationReviews)
	})

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Post("/api/v1/bookings", bookingHandler.CreateBooking)
		r.Get("/api/v1/bookings", bookingHandler.ListBookings)
		r.Get("/api/v1/bookings/{id}", bookingHandler.GetBooking)
		r.Get("/api/v1/bookings/code/{code}", bookingHandler.GetBookingByCode)
		r.Post("/api/v1/bookings/{id}/cancel", bookingHandler.CancelBooking)

		r.Post("/api/v1/reviews", reviewHandler.CreateReview)
		r.Get("/api/v1/reviews/{id}", reviewHandler.GetReview)
		r.Delete("/api/v1/reviews/{id}", reviewHandler.DeleteReview)
	})

	// Admin endpoints
	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequireRole(service.RoleAdmin))

		r.Post("/api/v1/categories", categoryHandler.CreateCategory)
		r.Put("/api/v1/categories/{id}", categoryHandler.UpdateCategory)
		r.Delete("/api/v1/categories/{id}", categoryHandler.DeleteCategory)

		r.Post("/api/v1/destinations", destinationHandler.CreateDestination)
		r.Put("/api/v1/destinations/{id}", destinationHandler.UpdateDestination)
		r.Delete("/api/v1/destinations/{id}", destinationHandler.DeleteDestination)

		r.Post("/api/v1/destinations/{id}/slots", slotHandler.CreateSlot)
		r.Put("/api/v1/slots/{id}", slotHandler.UpdateSlot)
		r.Delete("/api/v1/slots/{id}", slotHandler.DeactivateSlot)

		r.Put("/api/v1/bookings/{id}/status", bookingHandler.UpdateBookingStatus)
		r.Put("/api/v1/reviews/{id}/status", reviewHandler.ModerateReview)
	})

	return r
}
