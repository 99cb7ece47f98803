package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookingd/internal/domain"
	"bookingd/internal/service/booking"
)

type bookingService interface {
	ListBookableDates(ctx context.Context, providerID string, horizonDays int) ([]domain.BookableDate, error)
	ListAvailableSlots(ctx context.Context, providerID string, date time.Time) ([]domain.Slot, error)
	Reserve(ctx context.Context, in booking.ReserveInput) (domain.Reservation, error)
	Cancel(ctx context.Context, reservationID uuid.UUID, actorID string) (domain.Reservation, error)
	Complete(ctx context.Context, reservationID uuid.UUID, providerID string) (domain.Reservation, error)
	MarkNoShow(ctx context.Context, reservationID uuid.UUID, providerID string) (domain.Reservation, error)
	ListUpcomingForSubject(ctx context.Context, subjectID string) ([]domain.Reservation, error)
	ListUpcomingForProvider(ctx context.Context, providerID string) ([]domain.Reservation, error)
}

type bookingHandlers struct {
	svc bookingService
	log *slog.Logger
}

func newBookingHandlers(svc bookingService, log *slog.Logger) *bookingHandlers {
	return &bookingHandlers{
		svc: svc,
		log: log.With(slog.String("component", "httpapi.booking")),
	}
}

const dateLayout = "2006-01-02"

type bookableDateJSON struct {
	Date      string `json:"date"`
	DayOfWeek int    `json:"day_of_week"`
}

type reservationJSON struct {
	ID           string `json:"id"`
	ProviderID   string `json:"provider_id"`
	SubjectID    string `json:"subject_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
	SubjectNotes string `json:"subject_notes,omitempty"`
}

func toReservationJSON(r domain.Reservation) reservationJSON {
	return reservationJSON{
		ID:           r.ID.String(),
		ProviderID:   r.ProviderID,
		SubjectID:    r.SubjectID,
		Date:         r.Date.Format(dateLayout),
		StartTime:    r.StartTime.String(),
		EndTime:      r.EndTime.String(),
		Status:       string(r.Status),
		Notes:        r.Notes,
		SubjectNotes: r.SubjectNotes,
	}
}

func toReservationListJSON(rows []domain.Reservation) []reservationJSON {
	out := make([]reservationJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, toReservationJSON(r))
	}
	return out
}

func (h *bookingHandlers) listBookableDates(c *gin.Context) {
	providerID := c.Param("provider_id")
	horizonDays := 0
	if raw := c.Query("horizon_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "horizon_days must be an integer"})
			return
		}
		horizonDays = n
	}

	dates, err := h.svc.ListBookableDates(c.Request.Context(), providerID, horizonDays)
	if err != nil {
		h.log.Warn("list bookable dates failed", slog.Any("err", err), slog.String("provider_id", providerID))
		writeError(c, err)
		return
	}

	out := make([]bookableDateJSON, 0, len(dates))
	for _, d := range dates {
		out = append(out, bookableDateJSON{Date: d.Date.Format(dateLayout), DayOfWeek: d.DayOfWeek})
	}
	c.JSON(http.StatusOK, gin.H{"dates": out})
}

func (h *bookingHandlers) listAvailableSlots(c *gin.Context) {
	providerID := c.Param("provider_id")
	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	slots, err := h.svc.ListAvailableSlots(c.Request.Context(), providerID, date)
	if err != nil {
		h.log.Warn("list slots failed", slog.Any("err", err), slog.String("provider_id", providerID))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

type reserveRequest struct {
	SubjectID    string           `json:"subject_id"`
	ProviderID   string           `json:"provider_id"`
	Date         string           `json:"date"`
	StartTime    domain.TimeOfDay `json:"start_time"`
	EndTime      domain.TimeOfDay `json:"end_time"`
	SubjectNotes string           `json:"subject_notes"`
}

func (h *bookingHandlers) reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	res, err := h.svc.Reserve(c.Request.Context(), booking.ReserveInput{
		SubjectID:    req.SubjectID,
		ProviderID:   req.ProviderID,
		Date:         date,
		Slot:         domain.Slot{Start: req.StartTime, End: req.EndTime},
		SubjectNotes: req.SubjectNotes,
	})
	if err != nil {
		h.log.Info(
			"reserve rejected",
			slog.Any("err", err),
			slog.String("provider_id", req.ProviderID),
			slog.String("subject_id", req.SubjectID),
			slog.String("date", req.Date),
			slog.String("start_time", req.StartTime.String()),
		)
		writeError(c, err)
		return
	}

	h.log.Info(
		"reservation created",
		slog.String("reservation_id", res.ID.String()),
		slog.String("provider_id", res.ProviderID),
		slog.String("subject_id", res.SubjectID),
		slog.String("date", res.Date.Format(dateLayout)),
		slog.String("start_time", res.StartTime.String()),
	)
	c.JSON(http.StatusCreated, toReservationJSON(res))
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

func (h *bookingHandlers) cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reservation id must be a uuid"})
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.svc.Cancel(c.Request.Context(), id, req.ActorID)
	if err != nil {
		h.log.Info("cancel rejected", slog.Any("err", err), slog.String("reservation_id", id.String()))
		writeError(c, err)
		return
	}

	h.log.Info("reservation cancelled", slog.String("reservation_id", res.ID.String()), slog.String("actor_id", req.ActorID))
	c.JSON(http.StatusOK, toReservationJSON(res))
}

type providerRequest struct {
	ProviderID string `json:"provider_id"`
}

func (h *bookingHandlers) complete(c *gin.Context) {
	h.closeOut(c, h.svc.Complete, "reservation completed")
}

func (h *bookingHandlers) markNoShow(c *gin.Context) {
	h.closeOut(c, h.svc.MarkNoShow, "reservation marked no-show")
}

func (h *bookingHandlers) closeOut(c *gin.Context, fn func(context.Context, uuid.UUID, string) (domain.Reservation, error), event string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reservation id must be a uuid"})
		return
	}
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := fn(c.Request.Context(), id, req.ProviderID)
	if err != nil {
		h.log.Info("close-out rejected", slog.Any("err", err), slog.String("reservation_id", id.String()))
		writeError(c, err)
		return
	}

	h.log.Info(event, slog.String("reservation_id", res.ID.String()), slog.String("provider_id", req.ProviderID))
	c.JSON(http.StatusOK, toReservationJSON(res))
}

func (h *bookingHandlers) listUpcomingForSubject(c *gin.Context) {
	rows, err := h.svc.ListUpcomingForSubject(c.Request.Context(), c.Param("subject_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": toReservationListJSON(rows)})
}

func (h *bookingHandlers) listUpcomingForProvider(c *gin.Context) {
	rows, err := h.svc.ListUpcomingForProvider(c.Request.Context(), c.Param("provider_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": toReservationListJSON(rows)})
}
