package routes

import (
	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/gin-gonic/gin"
)

func ProductRoutes(server *gin.Engine, c *controllers.ProductController, requireAuth gin.HandlerFunc) {
	products := server.Group("/products")
	{
		products.GET("", c.GetProducts)
		products.GET("/:id", c.GetProduct)
		products.GET("/:id/images", c.GetProductImages)

		manage := products.Group("", requireAuth, middlewares.RequireRole(models.RoleVendor, models.RoleAdmin))
		manage.POST("", c.CreateProduct)
		manage.PUT("/:id", c.UpdateProduct)
		manage.DELETE("/:id", c.DeleteProduct)
		manage.POST("/:id/upload-image", c.UploadProductImage)
	}
}
