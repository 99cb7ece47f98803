package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookingd/internal/domain"
	"bookingd/internal/service/availability"
)

type availabilityService interface {
	CreateRule(ctx context.Context, in availability.CreateRuleInput) (domain.AvailabilityRule, error)
	ListRules(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error)
	DeactivateRule(ctx context.Context, providerID string, ruleID uuid.UUID) (domain.AvailabilityRule, error)
}

type availabilityHandlers struct {
	svc availabilityService
	log *slog.Logger
}

func newAvailabilityHandlers(svc availabilityService, log *slog.Logger) *availabilityHandlers {
	return &availabilityHandlers{
		svc: svc,
		log: log.With(slog.String("component", "httpapi.availability")),
	}
}

type availabilityRuleJSON struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  bool   `json:"is_active"`
}

func toRuleJSON(r domain.AvailabilityRule) availabilityRuleJSON {
	return availabilityRuleJSON{
		ID:        r.ID.String(),
		DayOfWeek: r.DayOfWeek,
		StartTime: r.StartTime.String(),
		EndTime:   r.EndTime.String(),
		IsActive:  r.IsActive,
	}
}

type createRuleRequest struct {
	DayOfWeek int              `json:"day_of_week"`
	StartTime domain.TimeOfDay `json:"start_time"`
	EndTime   domain.TimeOfDay `json:"end_time"`
}

func (h *availabilityHandlers) createRule(c *gin.Context) {
	providerID := c.Param("provider_id")
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rule, err := h.svc.CreateRule(c.Request.Context(), availability.CreateRuleInput{
		ProviderID: providerID,
		DayOfWeek:  req.DayOfWeek,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		h.log.Warn("create rule failed", slog.Any("err", err), slog.String("provider_id", providerID))
		writeError(c, err)
		return
	}

	h.log.Info(
		"availability rule created",
		slog.String("rule_id", rule.ID.String()),
		slog.String("provider_id", providerID),
		slog.Int("day_of_week", rule.DayOfWeek),
	)
	c.JSON(http.StatusCreated, toRuleJSON(rule))
}

func (h *availabilityHandlers) listRules(c *gin.Context) {
	providerID := c.Param("provider_id")
	rules, err := h.svc.ListRules(c.Request.Context(), providerID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]availabilityRuleJSON, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

func (h *availabilityHandlers) deactivateRule(c *gin.Context) {
	providerID := c.Param("provider_id")
	ruleID, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rule id must be a uuid"})
		return
	}

	rule, err := h.svc.DeactivateRule(c.Request.Context(), providerID, ruleID)
	if err != nil {
		h.log.Warn("deactivate rule failed", slog.Any("err", err), slog.String("provider_id", providerID), slog.String("rule_id", ruleID.String()))
		writeError(c, err)
		return
	}

	h.log.Info("availability rule deactivated", slog.String("rule_id", rule.ID.String()), slog.String("provider_id", providerID))
	c.JSON(http.StatusOK, toRuleJSON(rule))
}
