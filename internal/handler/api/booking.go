package api

import (
	"errors"
	"net/http"
	"strconv"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/domain/escrow"
	reqdto "consult-engine/internal/handler/dto/request"
	resdto "consult-engine/internal/handler/dto/response"
	"consult-engine/internal/handler/middleware"
	"consult-engine/internal/infra"
	"consult-engine/internal/pkg/errs"
	"consult-engine/internal/usecase/commands"
	"consult-engine/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	lifecycle *commands.BookingLifecycle
	queries   queries.BookingQueries
}

func NewBookingHandler(lifecycle *commands.BookingLifecycle, q queries.BookingQueries) *BookingHandler {
	return &BookingHandler{
		lifecycle: lifecycle,
		queries:   q,
	}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	clientID, ok := middleware.GetActorID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	idempotencyKey, err := getIdempotencyKey(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req reqdto.CreateBookingRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result, err := h.lifecycle.CreateBooking(c.Request.Context(), commands.CreateBookingInput{
		IdempotencyKey: idempotencyKey,
		ClientID:       clientID,
		ConsultantID:   req.ConsultantID,
		ServiceType:    req.ServiceType,
		StartAt:        req.StartAt,
	})
	if err != nil {
		h.writeCreateError(c, result, err)
		return
	}

	if result.Replayed {
		c.JSON(http.StatusOK, resdto.FromCreatedBooking(result.Booking, nil))
		return
	}
	expiresAt := result.HoldExpiresAt
	c.JSON(http.StatusCreated, resdto.FromCreatedBooking(result.Booking, &expiresAt))
}

func (h *BookingHandler) writeCreateError(c *gin.Context, result commands.CreateBookingResult, err error) {
	switch {
	case errors.Is(err, errs.ErrSlotTaken):
		alts := make([]resdto.AlternativeSlot, len(result.Alternatives))
		for i, k := range result.Alternatives {
			alts[i] = resdto.AlternativeSlot{StartAt: k.StartAt(), DurationMin: k.DurationMinutes()}
		}
		c.JSON(http.StatusConflict, resdto.SlotTakenResponse{
			Error:        "Slot is no longer available",
			Alternatives: alts,
		})
	case errors.Is(err, errs.ErrSlotUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Slot is outside the consultant's availability"})
	case errors.Is(err, errs.ErrConsultantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Consultant not found"})
	case errors.Is(err, errs.ErrPaymentFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment could not be initiated"})
	case errors.Is(err, errs.ErrIdempotencyKeyRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency key required"})
	case errors.Is(err, errs.ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Idempotency key reused with different parameters"})
	case errors.Is(err, errs.ErrIdempotencyInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Booking request is currently being processed"})
	case errors.Is(err, errs.ErrDomainValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid booking parameters"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	view, err := h.queries.GetByID(c.Request.Context(), id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resdto.FromBookingView(view))
}

func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	view, err := h.queries.GetByReference(c.Request.Context(), c.Param("code"))
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resdto.FromBookingView(view))
}

func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	clientID, ok := middleware.GetActorID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var after *queries.Cursor
	if cursor := c.Query("after"); cursor != "" {
		after = &queries.Cursor{After: cursor}
	}

	items, next, err := h.queries.ListByClient(c.Request.Context(), clientID, after, intQuery(c, "limit"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	page := resdto.BookingListPage{Items: make([]*resdto.BookingListResponse, len(items))}
	for i, item := range items {
		page.Items[i] = resdto.FromBookingListItem(item)
	}
	if next != nil {
		page.Next = &next.After
	}
	c.JSON(http.StatusOK, page)
}

func (h *BookingHandler) GetEscrowStatement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	stmt, err := h.queries.GetEscrowStatement(c.Request.Context(), id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resdto.FromEscrowStatement(stmt))
}

func (h *BookingHandler) ConfirmPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	if err := h.lifecycle.ConfirmPayment(c.Request.Context(), id); err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}
	role, _ := middleware.GetActorRole(c)

	var req reqdto.CancelBookingRequest
	_ = c.ShouldBindJSON(&req) // empty body means role-derived reason

	if err := h.lifecycle.Cancel(c.Request.Context(), id, req.CancelReason(role)); err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *BookingHandler) RescheduleBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	var req reqdto.RescheduleBookingRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result, err := h.lifecycle.Reschedule(c.Request.Context(), id, req.NewStartAt)
	if err != nil {
		if errors.Is(err, errs.ErrSlotTaken) {
			alts := make([]resdto.AlternativeSlot, len(result.Alternatives))
			for i, k := range result.Alternatives {
				alts[i] = resdto.AlternativeSlot{StartAt: k.StartAt(), DurationMin: k.DurationMinutes()}
			}
			c.JSON(http.StatusConflict, resdto.SlotTakenResponse{
				Error:        "New slot is no longer available",
				Alternatives: alts,
			})
			return
		}
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resdto.FromCreatedBooking(result.Booking, nil))
}

func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}
	role, ok := middleware.GetActorRole(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.lifecycle.MarkDelivered(c.Request.Context(), id, role); err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	if err := h.lifecycle.MarkNoShow(c.Request.Context(), id); err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "no_show"})
}

func (h *BookingHandler) DisputeBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	if err := h.lifecycle.Dispute(c.Request.Context(), id); err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disputed"})
}

func (h *BookingHandler) ResolveDispute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	var req reqdto.ResolveDisputeRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	outcome := escrow.Status(req.Outcome)
	if outcome != escrow.StatusReleased && outcome != escrow.StatusRefunded {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Outcome must be 'released' or 'refunded'"})
		return
	}

	if err := h.lifecycle.ResolveDispute(c.Request.Context(), id, outcome); err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (h *BookingHandler) writeLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, booking.ErrNotYetEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "Operation not valid for the booking's current state"})
	case errors.Is(err, errs.ErrEscrowFrozen):
		c.JSON(http.StatusConflict, gin.H{"error": "Escrow is frozen by an open dispute"})
	case errors.Is(err, errs.ErrHoldExpired):
		c.JSON(http.StatusConflict, gin.H{"error": "Hold expired"})
	case errors.Is(err, errs.ErrPaymentCaptureRaceLoss):
		c.JSON(http.StatusConflict, gin.H{"error": "Payment arrived after the hold expired and was refunded"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func getIdempotencyKey(c *gin.Context) (uuid.UUID, error) {
	keyStr := c.GetHeader("Idempotency-Key")
	if keyStr == "" {
		return uuid.Nil, errs.ErrIdempotencyKeyRequired
	}

	key, err := uuid.Parse(keyStr)
	if err != nil {
		return uuid.Nil, errors.New("invalid idempotency key format")
	}
	return key, nil
}

func intQuery(c *gin.Context, name string) int {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}
