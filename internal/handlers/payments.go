package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

const maxStripePayload = 65536

type PaymentsHandler struct {
	payments      *services.PaymentService
	webhookSecret string
	logger        *zap.Logger
}

func NewPaymentsHandler(payments *services.PaymentService, webhookSecret string, logger *zap.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		payments:      payments,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// HandleStripeWebhook godoc
// @Summary     Payment webhook endpoint
// @Description Verifies the Stripe signature and starts processing of paid reorders.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string true "Stripe signature"
// @Success     200 {object} map[string]string "status"
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /webhooks/stripe [post]
func (h *PaymentsHandler) HandleStripeWebhook(c *gin.Context) {
	if h.webhookSecret == "" {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "payment webhook not configured"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxStripePayload))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to read request body",
			Message: err.Error(),
		})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid signature",
			Message: err.Error(),
		})
		return
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid checkout session",
				Message: err.Error(),
			})
			return
		}
		paymentEvent, ok := paymentEventFrom(session.Metadata)
		if !ok {
			h.logger.Warn("checkout session without order metadata", zap.String("session_id", session.ID))
			break
		}
		if err := h.payments.HandlePaymentSucceeded(c.Request.Context(), paymentEvent); err != nil {
			h.logger.Error("failed to handle payment",
				zap.Uint("order_id", paymentEvent.OrderID),
				zap.String("addon_type", paymentEvent.AddonType),
				zap.Error(err))
			c.JSON(statusFor(err), models.ErrorResponse{Error: "failed to handle payment", Message: err.Error()})
			return
		}
	case stripe.EventTypePaymentIntentSucceeded:
		h.logger.Info("payment intent succeeded", zap.String("event_id", event.ID))
	case stripe.EventTypePaymentIntentPaymentFailed:
		h.logger.Warn("payment intent failed", zap.String("event_id", event.ID))
	default:
		h.logger.Debug("ignoring payment event", zap.String("type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func paymentEventFrom(metadata map[string]string) (services.PaymentEvent, bool) {
	orderID, err := strconv.ParseUint(metadata["order_id"], 10, 64)
	if err != nil || orderID == 0 {
		return services.PaymentEvent{}, false
	}
	event := services.PaymentEvent{
		OrderID:   uint(orderID),
		AddonType: metadata["addon_type"],
	}
	if userID, err := strconv.ParseUint(metadata["user_id"], 10, 64); err == nil && userID > 0 {
		id := uint(userID)
		event.UserID = &id
	}
	return event, true
}
