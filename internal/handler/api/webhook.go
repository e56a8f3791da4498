package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	reqdto "consult-engine/internal/handler/dto/request"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/pkg/errs"
	"consult-engine/internal/usecase/commands"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// WebhookHandler receives the payment gateway's async notifications. The
// endpoint is unauthenticated but signature-checked, and every outcome is
// deduped downstream, so redelivery is always safe.
type WebhookHandler struct {
	lifecycle *commands.BookingLifecycle
	secret    []byte
}

func NewWebhookHandler(lifecycle *commands.BookingLifecycle, cfg config.GatewayConfig) *WebhookHandler {
	return &WebhookHandler{
		lifecycle: lifecycle,
		secret:    []byte(cfg.WebhookSecret),
	}
}

func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}
	if !h.verifySignature(c.GetHeader("X-Gateway-Signature"), body) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var req reqdto.PaymentWebhookRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	switch req.Outcome {
	case "captured":
		err = h.lifecycle.OnPaymentCaptured(c.Request.Context(), req.IntentID, req.AmountCents)
	case "failed":
		err = h.lifecycle.OnPaymentFailed(c.Request.Context(), req.IntentID, req.Terminal)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown outcome"})
		return
	}

	if err != nil {
		// The race loss is fully handled: the capture was refunded. The
		// gateway must not redeliver, so it still gets a 200.
		if errors.Is(err, errs.ErrPaymentCaptureRaceLoss) {
			c.JSON(http.StatusOK, gin.H{"status": "refunded"})
			return
		}
		if errors.Is(err, errs.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No booking for intent"})
			return
		}
		// A 5xx makes the gateway retry; the event record rolled back with
		// the failed transaction, so the retry gets a clean run.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// verifySignature checks the HMAC-SHA256 hex digest of the raw body. An
// empty configured secret disables verification (dev mode with the local
// gateway).
func (h *WebhookHandler) verifySignature(signature string, body []byte) bool {
	if len(h.secret) == 0 {
		return true
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
