package routes

import (
	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/gin-gonic/gin"
)

func DefaultRoutes(server *gin.Engine, c *controllers.DefaultController) {
	server.GET("/", controllers.GetHome)
	server.GET("/health", controllers.HealthCheck)
	server.GET("/zones/coverage", c.ZoneCoverage)
}
