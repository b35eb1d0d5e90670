package handlers

import (
	"errors"
	"net/http"
	"time"

	"ms-coaching/internal/auth"
	"ms-coaching/internal/booking"
	"ms-coaching/internal/config"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"
	"ms-coaching/internal/payments"
	"ms-coaching/internal/utils"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService *payments.Service
	webhooks       *payments.WebhookProcessor
	bookings       payments.BookingCreator
	cfg            config.StripeConfig
	logger         *logger.Logger
}

func NewPaymentHandler(paymentService *payments.Service, webhooks *payments.WebhookProcessor, bookings payments.BookingCreator, cfg config.StripeConfig, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		webhooks:       webhooks,
		bookings:       bookings,
		cfg:            cfg,
		logger:         logger,
	}
}

// CreateIntent opens a payment intent for a booking. The caller identity
// comes from the bearer token, not the payload.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var req models.PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	callerID, err := h.callerID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return
	}
	req.ClientID = callerID

	resp, err := h.paymentService.CreateBookingIntent(req)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment intent created", resp))
}

// ConfirmIntent drives the programmatic flow: confirm the capture
// synchronously, then create the booking from the intent metadata.
func (h *PaymentHandler) ConfirmIntent(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	if req.IntentID == "" || req.PaymentMethodID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "intent_id and payment_method_id are required"))
		return
	}

	if err := h.paymentService.ConfirmIntent(req.IntentID, req.PaymentMethodID); err != nil {
		h.writePaymentError(c, err)
		return
	}

	intent, err := h.paymentService.GetIntent(req.IntentID)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	bookingReq, err := payments.BookingRequestFromIntent(intent)
	if err != nil {
		h.logger.Error("PAYMENT", "Captured intent "+req.IntentID+" has malformed booking metadata: "+err.Error())
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Payment captured but booking data is malformed", req.IntentID))
		return
	}

	bk, err := h.bookings.Create(bookingReq)
	if err != nil {
		var recErr *booking.ReconciliationError
		if errors.As(err, &recErr) {
			h.logger.LogSecurity("RECONCILE", recErr.Error())
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse(
				"Payment captured but booking creation failed, support has been notified", recErr.PaymentIntentID))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Booking creation failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment confirmed and booking created", bk))
}

// Webhook receives gateway events. Stripe retries non-2xx responses, so
// the status code here controls replay behavior.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	if err := h.webhooks.HandleWebhook(c.Request); err != nil {
		var whErr *payments.WebhookError
		if errors.As(err, &whErr) {
			c.JSON(whErr.StatusCode, utils.ErrorResponse(whErr.PublicError, whErr.Category))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Webhook processing error", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Webhook processed", nil))
}

// CreatePayeeAccount creates the mentor's connected account. Only the
// mentor themselves can do this.
func (h *PaymentHandler) CreatePayeeAccount(c *gin.Context) {
	callerID, err := h.callerID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return
	}

	mentorID := c.Param("mentorID")
	accountID, err := h.paymentService.CreatePayeeAccount(callerID, mentorID)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payee account ready", map[string]string{"account_id": accountID}))
}

// CreateOnboardingLink returns the URL the mentor uses to finish payee
// onboarding with the gateway.
func (h *PaymentHandler) CreateOnboardingLink(c *gin.Context) {
	callerID, err := h.callerID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return
	}

	mentorID := c.Param("mentorID")
	link, err := h.paymentService.CreateOnboardingLink(callerID, mentorID, h.cfg.OnboardingReload, h.cfg.OnboardingReturn)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Onboarding link created", link))
}

func (h *PaymentHandler) callerID(c *gin.Context) (string, error) {
	token, err := auth.ExtractTokenFromRequest(c.Request)
	if err != nil {
		return "", err
	}
	return auth.ExtractUserIDFromJWT(token)
}

func (h *PaymentHandler) writePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payments.ErrUnauthenticated):
		c.JSON(http.StatusForbidden, utils.ErrorResponse("Forbidden", err.Error()))
	case errors.Is(err, payments.ErrPaymentDeclined):
		c.JSON(http.StatusPaymentRequired, utils.ErrorResponse("Payment declined", err.Error()))
	case errors.Is(err, payments.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse("Payment gateway unavailable", err.Error()))
	case errors.Is(err, booking.ErrSelfBooking),
		errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrInvalidPrice),
		errors.Is(err, booking.ErrInvalidSessionType),
		errors.Is(err, booking.ErrNotBookingParty):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid booking parameters", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Payment processing failed", err.Error()))
	}
}

// SetupRoutes wires the payment service routes onto a gin engine.
func (h *PaymentHandler) SetupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/payments/intents", h.CreateIntent)
		v1.POST("/payments/confirm", h.ConfirmIntent)
		v1.POST("/payments/webhook", h.Webhook)
		v1.POST("/payees/:mentorID", h.CreatePayeeAccount)
		v1.POST("/payees/:mentorID/onboarding-link", h.CreateOnboardingLink)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
}
