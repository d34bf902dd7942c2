package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(tokens *utils.TokenIssuer, allowQuery bool, roles ...models.Role) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{RequireAuth(tokens, allowQuery)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(ctx *gin.Context) {
		id, role, _ := CurrentUser(ctx)
		ctx.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	r.GET("/protected", handlers...)
	return r
}

func token(t *testing.T, tokens *utils.TokenIssuer, id uint, role models.Role) string {
	t.Helper()
	user := models.User{Email: "u@example.com", Role: role}
	user.ID = id
	s, err := tokens.Generate(user)
	require.NoError(t, err)
	return s
}

func TestRequireAuth(t *testing.T) {
	tokens := utils.NewTokenIssuer("secret", time.Hour)
	customer := token(t, tokens, 7, models.RoleCustomer)

	tests := []struct {
		name       string
		allowQuery bool
		header     string
		query      string
		wantStatus int
	}{
		{"missing token", false, "", "", http.StatusUnauthorized},
		{"bearer header", false, "Bearer " + customer, "", http.StatusOK},
		{"garbage token", false, "Bearer nope", "", http.StatusUnauthorized},
		{"query token refused", false, "", customer, http.StatusUnauthorized},
		{"query token accepted", true, "", customer, http.StatusOK},
		{"wrong secret", false, "Bearer " + token(t, utils.NewTokenIssuer("other", time.Hour), 7, models.RoleCustomer), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/protected"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tokens, tt.allowQuery).ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := utils.NewTokenIssuer("secret", time.Hour)
	router := newRouter(tokens, false, models.RoleAdmin, models.RoleVendor)

	tests := []struct {
		role       models.Role
		wantStatus int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleVendor, http.StatusOK},
		{models.RoleCustomer, http.StatusForbidden},
		{models.RoleDriver, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, tokens, 3, tt.role))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/missing/:id", func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"message": "nope"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing/1", nil))

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "/missing/:id", entry.Data["path"])
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
}
