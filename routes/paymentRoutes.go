package routes

import (
	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/gin-gonic/gin"
)

func PaymentRoutes(server *gin.Engine, c *controllers.PaymentController, requireAuth gin.HandlerFunc) {
	payments := server.Group("/payments")
	{
		payments.POST("/create-payment-intent", requireAuth, c.CreatePaymentIntent)
		payments.POST("/webhook", c.HandleWebhook)
	}
}
