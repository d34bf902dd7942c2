package controllers

import (
	"io"
	"net/http"
	"time"

	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/payments"
	"github.com/Kariqs/greenleaf-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWebhookBody = 64 << 10

type PaymentController struct {
	Payments      *services.PaymentService
	WebhookSecret string
	Logger        *logrus.Logger
	Now           func() time.Time
}

func (c *PaymentController) CreatePaymentIntent(ctx *gin.Context) {
	var input services.PaymentIntentInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	userID, _, _ := middlewares.CurrentUser(ctx)
	result, err := c.Payments.CreatePaymentIntent(ctx.Request.Context(), userID, input)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to create payment intent")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"clientSecret": result.ClientSecret,
		"orderId":      result.OrderID,
	})
}

// HandleWebhook needs the raw body; signature verification fails on re-encoded JSON.
func (c *PaymentController) HandleWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBody))
	if err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, "Unable to read request body")
		return
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	event, err := payments.ConstructEvent(payload, ctx.GetHeader(payments.SignatureHeader), c.WebhookSecret, now(), payments.DefaultTolerance)
	if err != nil {
		c.Logger.WithError(err).Warn("Webhook signature verification failed")
		sendErrorResponse(ctx, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	outcome, err := c.Payments.HandleWebhookEvent(ctx.Request.Context(), event)
	if err != nil {
		c.Logger.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Error("Webhook processing failed")
		sendErrorResponse(ctx, http.StatusInternalServerError, "Webhook processing failed")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
