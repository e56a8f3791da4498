//go:build unit

package api_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"consult-engine/internal/handler/api"
	"consult-engine/internal/infra"
	"consult-engine/internal/pkg/config"
	"consult-engine/internal/usecase/commands"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

// stubRunner and stubPayEvents short-circuit the capture path at the replay
// check, which is all the webhook transport tests need.
type stubRunner struct{}

func (stubRunner) DB() infra.DBTX { return nil }

func (stubRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, db infra.DBTX) error) error {
	return fn(ctx, nil)
}

type stubPayEvents struct{}

func (stubPayEvents) Seen(context.Context, infra.DBTX, string, string) (bool, error) {
	return true, nil
}

func (stubPayEvents) TryRecord(context.Context, infra.DBTX, string, string) (bool, error) {
	return false, nil
}

type WebhookHandlerTestSuite struct {
	suite.Suite
	router *gin.Engine
	secret string
}

func (s *WebhookHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.secret = "whsec_test"

	lifecycle := commands.NewBookingLifecycle(commands.LifecycleDeps{
		Runner:    stubRunner{},
		PayEvents: stubPayEvents{},
	})
	handler := api.NewWebhookHandler(lifecycle, config.GatewayConfig{WebhookSecret: s.secret})

	s.router = gin.New()
	s.router.POST("/webhooks/payment", handler.HandlePaymentEvent)
}

func TestWebhookHandlerSuite(t *testing.T) {
	suite.Run(t, new(WebhookHandlerTestSuite))
}

func (s *WebhookHandlerTestSuite) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *WebhookHandlerTestSuite) post(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Gateway-Signature", signature)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *WebhookHandlerTestSuite) TestValidSignatureIsAccepted() {
	body := []byte(`{"intent_id":"pi_1","outcome":"captured","amount_cents":10000}`)
	w := s.post(body, s.sign(body))

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "ok")
}

func (s *WebhookHandlerTestSuite) TestMissingSignatureIsRejected() {
	body := []byte(`{"intent_id":"pi_1","outcome":"captured","amount_cents":10000}`)
	w := s.post(body, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *WebhookHandlerTestSuite) TestTamperedBodyIsRejected() {
	body := []byte(`{"intent_id":"pi_1","outcome":"captured","amount_cents":10000}`)
	signature := s.sign(body)
	tampered := []byte(`{"intent_id":"pi_1","outcome":"captured","amount_cents":99999}`)

	w := s.post(tampered, signature)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *WebhookHandlerTestSuite) TestMalformedBody() {
	body := []byte(`{not json`)
	w := s.post(body, s.sign(body))
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *WebhookHandlerTestSuite) TestUnknownOutcome() {
	body := []byte(`{"intent_id":"pi_1","outcome":"exploded"}`)
	w := s.post(body, s.sign(body))
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *WebhookHandlerTestSuite) TestEmptySecretDisablesVerification() {
	lifecycle := commands.NewBookingLifecycle(commands.LifecycleDeps{
		Runner:    stubRunner{},
		PayEvents: stubPayEvents{},
	})
	handler := api.NewWebhookHandler(lifecycle, config.GatewayConfig{})
	router := gin.New()
	router.POST("/webhooks/payment", handler.HandlePaymentEvent)

	body := []byte(`{"intent_id":"pi_1","outcome":"failed","terminal":true}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
}
