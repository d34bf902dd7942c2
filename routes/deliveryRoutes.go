package routes

import (
	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/gin-gonic/gin"
)

func DeliveryRoutes(server *gin.Engine, c *controllers.DeliveryController, requireAuth gin.HandlerFunc) {
	deliveries := server.Group("/deliveries", requireAuth)
	{
		deliveries.GET("/my-deliveries", middlewares.RequireRole(models.RoleDriver), c.GetMyDeliveries)
		deliveries.GET("/:id", c.GetDelivery)
		deliveries.PUT("/:id/status", middlewares.RequireRole(models.RoleDriver), c.UpdateDeliveryStatus)
	}

	drivers := server.Group("/drivers", requireAuth)
	{
		drivers.PUT("/availability", middlewares.RequireRole(models.RoleDriver), c.UpdateAvailability)
		drivers.GET("/available", middlewares.RequireAdmin(), c.GetAvailableDrivers)
	}
}
