package api

import (
	"errors"
	"net/http"
	"time"

	resdto "consult-engine/internal/handler/dto/response"
	"consult-engine/internal/infra/matching"
	"consult-engine/internal/pkg/errs"
	"consult-engine/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SlotHandler struct {
	queries queries.SlotQueries
}

func NewSlotHandler(q queries.SlotQueries) *SlotHandler {
	return &SlotHandler{queries: q}
}

// ListOpenSlots returns a consultant's bookable slots for a window. The list
// is advisory; only a reservation attempt settles contention.
func (h *SlotHandler) ListOpenSlots(c *gin.Context) {
	consultantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid consultant ID format"})
		return
	}
	serviceType := c.Query("service_type")
	if serviceType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service_type is required"})
		return
	}
	from, to, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slots, err := h.queries.ListOpenSlots(c.Request.Context(), consultantID, serviceType, from, to)
	if err != nil {
		if errors.Is(err, errs.ErrDomainValidation) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown service type"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resdto.FromOpenSlots(slots))
}

// SuggestConsultants combines the matching service's ranking with each
// consultant's next open slots.
func (h *SlotHandler) SuggestConsultants(c *gin.Context) {
	serviceType := c.Query("service_type")
	if serviceType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service_type is required"})
		return
	}
	from, to, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := matching.Requirements{
		ServiceType: serviceType,
		Language:    c.Query("language"),
		Topics:      c.QueryArray("topic"),
	}
	suggestions, err := h.queries.SuggestConsultants(c.Request.Context(), req, from, to, intQuery(c, "slots_per"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resdto.FromSuggestions(suggestions))
}

func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errors.New("from and to are required (RFC3339)")
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid 'from' timestamp")
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid 'to' timestamp")
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("'to' must be after 'from'")
	}
	return from, to, nil
}
