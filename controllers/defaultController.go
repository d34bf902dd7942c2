package controllers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Kariqs/greenleaf-api/geo"
	"github.com/gin-gonic/gin"
)

type DefaultController struct {
	Zone            geo.Zone
	AverageSpeedKmh float64
}

func GetHome(ctx *gin.Context) {
	message := `Welcome to the GreenLeaf delivery API.

AUTH
- POST "/auth/register" - Create an account (CUSTOMER, VENDOR or DRIVER)
- POST "/auth/login" - Obtain an access token
- GET "/auth/profile" - Current user with profiles

PRODUCTS
- GET "/products" - Active products (category, search, page, limit)
- GET "/products/:id" - Product by ID
- POST "/products" - Create product (vendor, admin)
- PUT "/products/:id" - Update product (owner, admin)
- DELETE "/products/:id" - Delete product (owner, admin)
- POST "/products/:id/upload-image" - Upload product image
- GET "/products/:id/images" - Product images with signed URLs

ORDERS
- POST "/orders" - Place an order
- GET "/orders" - All orders (admin)
- GET "/orders/my-orders" - Orders of the current user
- GET "/orders/:id" - Order by ID
- PUT "/orders/:id/status" - Update order status (admin, vendor)
- POST "/orders/:id/assign-delivery" - Assign a driver (admin)

PAYMENTS
- POST "/payments/create-payment-intent" - Start card payment
- POST "/payments/webhook" - Payment gateway callback

DELIVERIES
- GET "/deliveries/my-deliveries" - Deliveries of the current driver
- GET "/deliveries/:id" - Delivery by ID
- PUT "/deliveries/:id/status" - Advance delivery status (driver)
- PUT "/drivers/availability" - Toggle driver availability
- GET "/drivers/available" - Available drivers (admin)
- GET "/zones/coverage?lat=&lng=" - Service zone check
- GET "/ws/deliveries?token=" - Live delivery tracking (websocket)`

	ctx.JSON(http.StatusOK, gin.H{
		"message": message,
	})
}

func HealthCheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *DefaultController) ZoneCoverage(ctx *gin.Context) {
	lat, latErr := strconv.ParseFloat(ctx.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(ctx.Query("lng"), 64)
	point := geo.Point{Lat: lat, Lng: lng}
	if latErr != nil || lngErr != nil || !point.Valid() {
		sendErrorResponse(ctx, http.StatusBadRequest, "lat and lng must be valid coordinates")
		return
	}

	distance := geo.Distance(c.Zone.Center, point)
	eta := geo.EstimateTravelTime(distance, c.AverageSpeedKmh)

	ctx.JSON(http.StatusOK, gin.H{
		"withinZone": c.Zone.Contains(point),
		"distanceKm": math.Round(distance*100) / 100,
		"etaMinutes": int(math.Ceil(eta.Minutes())),
	})
}
