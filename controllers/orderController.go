package controllers

import (
	"net/http"

	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type OrderController struct {
	Orders     *services.OrderService
	Deliveries *services.DeliveryService
	Logger     *logrus.Logger
}

func (c *OrderController) CreateOrder(ctx *gin.Context) {
	var input services.PlaceOrderInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	userID, _, _ := middlewares.CurrentUser(ctx)
	order, err := c.Orders.Place(ctx.Request.Context(), userID, input)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to create order")
		return
	}

	sendJSONResponse(ctx, http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"order":   order,
	})
}

func (c *OrderController) GetOrders(ctx *gin.Context) {
	page, limit := pagination(ctx, 15)

	orders, count, err := c.Orders.ListAll(ctx.Request.Context(), page, limit)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Unable to fetch orders")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"orders":   orders,
		"metadata": paginationMetadata(count, page, limit),
	})
}

func (c *OrderController) GetMyOrders(ctx *gin.Context) {
	userID, _, _ := middlewares.CurrentUser(ctx)

	orders, err := c.Orders.ListForUser(ctx.Request.Context(), userID)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to fetch orders")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"orders": orders})
}

func (c *OrderController) GetOrder(ctx *gin.Context) {
	orderID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	userID, role, _ := middlewares.CurrentUser(ctx)

	order, err := c.Orders.GetForUser(ctx.Request.Context(), orderID, userID, role)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to fetch order")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"order": order})
}

func (c *OrderController) UpdateOrderStatus(ctx *gin.Context) {
	orderID, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	var body struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Failed to parse request body", err)
		return
	}

	userID, role, _ := middlewares.CurrentUser(ctx)
	order, err := c.Orders.UpdateStatus(ctx.Request.Context(), orderID, userID, role, body.Status)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to update order status")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"message": "Order status updated successfully.",
		"order":   order,
	})
}

func (c *OrderController) AssignDelivery(ctx *gin.Context) {
	orderID, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	var body struct {
		DriverID uint `json:"driverId" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Failed to parse request body", err)
		return
	}

	delivery, err := c.Deliveries.Assign(ctx.Request.Context(), orderID, body.DriverID)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to assign delivery")
		return
	}

	sendJSONResponse(ctx, http.StatusCreated, gin.H{
		"message":  "Delivery assigned successfully",
		"delivery": delivery,
	})
}
