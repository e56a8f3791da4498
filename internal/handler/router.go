package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consult-engine/internal/domain/booking"
	"consult-engine/internal/handler/api"
	"consult-engine/internal/handler/middleware"
	"consult-engine/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(
	engine *gin.Engine,
	cfg config.Config,
	bookingHandler *api.BookingHandler,
	slotHandler *api.SlotHandler,
	webhookHandler *api.WebhookHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, bookingHandler, slotHandler, webhookHandler, authMiddleware)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(cfg.Log))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(
	engine *gin.Engine,
	bookingHandler *api.BookingHandler,
	slotHandler *api.SlotHandler,
	webhookHandler *api.WebhookHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	engine.GET("/health", healthCheck)

	// Gateway callbacks authenticate by signature, not bearer token.
	engine.POST("/webhooks/payment", webhookHandler.HandlePaymentEvent)

	createLimiter := middleware.NewRateLimiter(5, 5)

	apiGroup := engine.Group("/api")
	{
		consultants := apiGroup.Group("/consultants")
		consultants.Use(authMiddleware.RequireAuth())
		{
			addRoutes(consultants, []route{
				{Method: http.MethodGet, Path: "/:id/slots", Handler: slotHandler.ListOpenSlots},
			})
		}

		matches := apiGroup.Group("/matches")
		matches.Use(authMiddleware.RequireAuth())
		{
			addRoutes(matches, []route{
				{Method: http.MethodGet, Path: "", Handler: slotHandler.SuggestConsultants},
			})
		}

		bookings := apiGroup.Group("/bookings")
		bookings.Use(authMiddleware.RequireAuth())
		{
			addRoutes(bookings, []route{
				{Method: http.MethodPost, Path: "", Handler: bookingHandler.CreateBooking, Mw: []gin.HandlerFunc{createLimiter.Limit()}},
				{Method: http.MethodGet, Path: "", Handler: bookingHandler.ListMyBookings},
				{Method: http.MethodGet, Path: "/:id", Handler: bookingHandler.GetBooking},
				{Method: http.MethodGet, Path: "/ref/:code", Handler: bookingHandler.GetBookingByReference},
				{Method: http.MethodGet, Path: "/:id/escrow", Handler: bookingHandler.GetEscrowStatement},
				{Method: http.MethodPost, Path: "/:id/confirm-payment", Handler: bookingHandler.ConfirmPayment},
				{Method: http.MethodPost, Path: "/:id/cancel", Handler: bookingHandler.CancelBooking},
				{Method: http.MethodPost, Path: "/:id/reschedule", Handler: bookingHandler.RescheduleBooking},
				{Method: http.MethodPost, Path: "/:id/complete", Handler: bookingHandler.CompleteBooking},
				{Method: http.MethodPost, Path: "/:id/dispute", Handler: bookingHandler.DisputeBooking},
			})

			consultantOnly := bookings.Group("")
			consultantOnly.Use(authMiddleware.RequireRoleAtLeast(booking.ActorConsultant))
			addRoutes(consultantOnly, []route{
				{Method: http.MethodPost, Path: "/:id/no-show", Handler: bookingHandler.MarkNoShow},
			})

			adminOnly := bookings.Group("")
			adminOnly.Use(authMiddleware.RequireRoleAtLeast(booking.ActorAdmin))
			addRoutes(adminOnly, []route{
				{Method: http.MethodPost, Path: "/:id/resolve-dispute", Handler: bookingHandler.ResolveDispute},
			})
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
