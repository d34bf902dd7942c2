package middlewares

import (
	"net/http"
	"strings"

	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/utils"
	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "userId"
	roleKey   = "role"
	claimsKey = "user"
)

func bearerToken(ctx *gin.Context) string {
	h := ctx.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireAuth verifies the bearer token and stores the caller in the context.
// With allowQuery set the token may also come from ?token=, which browsers need
// for websocket upgrades.
func RequireAuth(tokens *utils.TokenIssuer, allowQuery bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString := bearerToken(ctx)
		if tokenString == "" && allowQuery {
			tokenString = ctx.Query("token")
		}
		if tokenString == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
			return
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		ctx.Set(userIDKey, claims.UserID)
		ctx.Set(roleKey, claims.Role)
		ctx.Set(claimsKey, claims)
		ctx.Next()
	}
}

// CurrentUser returns the caller stored by RequireAuth.
func CurrentUser(ctx *gin.Context) (uint, models.Role, bool) {
	userID, ok := ctx.Get(userIDKey)
	if !ok {
		return 0, "", false
	}
	role, _ := ctx.Get(roleKey)

	id, _ := userID.(uint)
	r, _ := role.(models.Role)
	return id, r, id != 0
}
