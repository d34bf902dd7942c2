package routes

import (
	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/realtime"
	"github.com/Kariqs/greenleaf-api/utils"
	"github.com/gin-gonic/gin"
)

type Controllers struct {
	Auth     *controllers.AuthController
	Product  *controllers.ProductController
	Order    *controllers.OrderController
	Payment  *controllers.PaymentController
	Delivery *controllers.DeliveryController
	Default  *controllers.DefaultController
	Hub      *realtime.Hub
}

// Register mounts every route group on server.
func Register(server *gin.Engine, tokens *utils.TokenIssuer, c Controllers) {
	requireAuth := middlewares.RequireAuth(tokens, false)

	DefaultRoutes(server, c.Default)
	AuthRoutes(server, c.Auth, requireAuth)
	ProductRoutes(server, c.Product, requireAuth)
	OrderRoutes(server, c.Order, requireAuth)
	PaymentRoutes(server, c.Payment, requireAuth)
	DeliveryRoutes(server, c.Delivery, requireAuth)
	server.GET("/ws/deliveries", middlewares.RequireAuth(tokens, true), c.Hub.HandleWebSocket(middlewares.CurrentUser))
}
