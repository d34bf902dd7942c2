package routes

import (
	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/gin-gonic/gin"
)

func AuthRoutes(server *gin.Engine, c *controllers.AuthController, requireAuth gin.HandlerFunc) {
	auth := server.Group("/auth")
	{
		auth.POST("/register", c.Register)
		auth.POST("/login", c.Login)
		auth.GET("/profile", requireAuth, c.Profile)
	}
}
