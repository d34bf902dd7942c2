package controllers

import (
	"net/http"

	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type DeliveryController struct {
	Deliveries *services.DeliveryService
	Logger     *logrus.Logger
}

func (c *DeliveryController) GetDelivery(ctx *gin.Context) {
	deliveryID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	userID, role, _ := middlewares.CurrentUser(ctx)

	delivery, err := c.Deliveries.Get(ctx.Request.Context(), deliveryID, userID, role)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to fetch delivery")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"delivery": delivery})
}

func (c *DeliveryController) UpdateDeliveryStatus(ctx *gin.Context) {
	deliveryID, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	var body struct {
		Status models.DeliveryStatus `json:"status" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Failed to parse request body", err)
		return
	}

	userID, _, _ := middlewares.CurrentUser(ctx)
	delivery, err := c.Deliveries.AdvanceStatus(ctx.Request.Context(), deliveryID, userID, body.Status)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to update delivery status")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"message":  "Delivery status updated successfully",
		"delivery": delivery,
	})
}

func (c *DeliveryController) GetMyDeliveries(ctx *gin.Context) {
	userID, _, _ := middlewares.CurrentUser(ctx)

	deliveries, err := c.Deliveries.ListForDriver(ctx.Request.Context(), userID)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to fetch deliveries")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"deliveries": deliveries})
}

func (c *DeliveryController) UpdateAvailability(ctx *gin.Context) {
	var body struct {
		IsAvailable *bool `json:"isAvailable" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Failed to parse request body", err)
		return
	}

	userID, _, _ := middlewares.CurrentUser(ctx)
	driver, err := c.Deliveries.SetAvailability(ctx.Request.Context(), userID, *body.IsAvailable)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to update availability")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"message": "Availability updated",
		"driver":  driver,
	})
}

func (c *DeliveryController) GetAvailableDrivers(ctx *gin.Context) {
	drivers, err := c.Deliveries.ListAvailableDrivers(ctx.Request.Context())
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to fetch drivers")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"drivers": drivers})
}
