package controllers

import (
	"net/http"

	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthController struct {
	Auth   *services.AuthService
	Logger *logrus.Logger
}

func (c *AuthController) Register(ctx *gin.Context) {
	var input services.RegisterInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondWithError(ctx, http.StatusBadRequest, msgInvalidInput, err)
		return
	}

	result, err := c.Auth.Register(ctx.Request.Context(), input)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to register user")
		return
	}

	sendJSONResponse(ctx, http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   result.Token,
		"user":    result.User,
	})
}

func (c *AuthController) Login(ctx *gin.Context) {
	var input services.LoginInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondWithError(ctx, http.StatusBadRequest, msgInvalidInput, err)
		return
	}

	result, err := c.Auth.Login(ctx.Request.Context(), input)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to log in")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   result.Token,
		"user":    result.User,
	})
}

func (c *AuthController) Profile(ctx *gin.Context) {
	userID, _, _ := middlewares.CurrentUser(ctx)

	user, err := c.Auth.Profile(ctx.Request.Context(), userID)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, err, "Failed to load profile")
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"user": user})
}
