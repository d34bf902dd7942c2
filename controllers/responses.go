package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Kariqs/greenleaf-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	msgInvalidInput        = "invalid input"
	msgInternalServerError = "Internal server error"
)

func sendJSONResponse(ctx *gin.Context, status int, data gin.H) {
	ctx.JSON(status, data)
}

func sendErrorResponse(ctx *gin.Context, status int, message string) {
	sendJSONResponse(ctx, status, gin.H{"message": message})
}

func respondWithError(ctx *gin.Context, statusCode int, message string, err error) {
	body := gin.H{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	ctx.JSON(statusCode, body)
}

// respondWithServiceError maps service errors to status codes. Anything
// unrecognised is logged and reported as a generic 500.
func respondWithServiceError(ctx *gin.Context, logger *logrus.Logger, err error, fallback string) {
	var stockErr *services.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		sendJSONResponse(ctx, http.StatusBadRequest, gin.H{
			"message":   "Insufficient stock for " + stockErr.Name,
			"productId": stockErr.ProductID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrProductNotFound):
		sendErrorResponse(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		sendErrorResponse(ctx, http.StatusForbidden, "Access denied")
	case errors.Is(err, services.ErrInvalidCredentials):
		sendErrorResponse(ctx, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrStatusConflict):
		sendErrorResponse(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrDeliveryAlreadyAssigned),
		errors.Is(err, services.ErrDriverBusy),
		errors.Is(err, services.ErrDuplicateEmail):
		sendErrorResponse(ctx, http.StatusBadRequest, err.Error())
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"method": ctx.Request.Method,
			"path":   ctx.FullPath(),
		}).Error(fallback)
		sendErrorResponse(ctx, http.StatusInternalServerError, fallback)
	}
}

func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		sendErrorResponse(ctx, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func pagination(ctx *gin.Context, defaultLimit int) (int, int) {
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit
}

func paginationMetadata(total int64, page, limit int) gin.H {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return gin.H{
		"total":        total,
		"currentPage":  page,
		"limit":        limit,
		"totalPages":   totalPages,
		"hasPrevPage":  page > 1,
		"hasNextPage":  totalPages > page,
		"previousPage": page - 1,
		"nextPage":     page + 1,
	}
}
