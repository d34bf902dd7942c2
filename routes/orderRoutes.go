package routes

import (
	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/gin-gonic/gin"
)

func OrderRoutes(server *gin.Engine, c *controllers.OrderController, requireAuth gin.HandlerFunc) {
	orders := server.Group("/orders", requireAuth)
	{
		orders.POST("", c.CreateOrder)
		orders.GET("", middlewares.RequireAdmin(), c.GetOrders)
		orders.GET("/my-orders", c.GetMyOrders)
		orders.GET("/:id", c.GetOrder)
		orders.PUT("/:id/status", middlewares.RequireRole(models.RoleAdmin, models.RoleVendor), c.UpdateOrderStatus)
		orders.POST("/:id/assign-delivery", middlewares.RequireAdmin(), c.AssignDelivery)
	}
}
