package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bookingd/internal/service/availability"
	"bookingd/internal/service/booking"
	"bookingd/internal/store"
)

// NewRouter wires the booking engine's HTTP surface. Caller identity
// arrives in paths and bodies; authentication is an external collaborator.
func NewRouter(bookingSvc bookingService, availabilitySvc availabilityService, log *slog.Logger, requestTimeout time.Duration) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(defaultRequestTimeout(requestTimeout))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	b := newBookingHandlers(bookingSvc, log)
	a := newAvailabilityHandlers(availabilitySvc, log)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/providers/:provider_id/bookable-dates", b.listBookableDates)
		v1.GET("/providers/:provider_id/slots", b.listAvailableSlots)
		v1.GET("/providers/:provider_id/reservations/upcoming", b.listUpcomingForProvider)
		v1.GET("/subjects/:subject_id/reservations/upcoming", b.listUpcomingForSubject)

		v1.POST("/reservations", b.reserve)
		v1.POST("/reservations/:id/cancel", b.cancel)
		v1.POST("/reservations/:id/complete", b.complete)
		v1.POST("/reservations/:id/no-show", b.markNoShow)

		v1.POST("/providers/:provider_id/availability", a.createRule)
		v1.GET("/providers/:provider_id/availability", a.listRules)
		v1.POST("/providers/:provider_id/availability/:rule_id/deactivate", a.deactivateRule)
	}

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

func defaultRequestTimeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); !ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
			defer cancel()
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// writeError maps the service error taxonomy onto HTTP statuses. Storage
// constraint details never leak past this point.
func writeError(c *gin.Context, err error) {
	var bookingVErr *booking.ValidationError
	var availabilityVErr *availability.ValidationError

	switch {
	case errors.As(err, &bookingVErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": bookingVErr.Error()})
	case errors.As(err, &availabilityVErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": availabilityVErr.Error()})
	case errors.Is(err, booking.ErrNotLinked):
		c.JSON(http.StatusForbidden, gin.H{"error": "subject is not linked to this provider"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, booking.ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "that slot was just booked; pick another time"})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "reservation is not in a state that allows this change"})
	case errors.Is(err, booking.ErrOutOfWindow):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "date is outside the booking window"})
	case errors.Is(err, booking.ErrStorageUnavailable), errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable; retry the request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
