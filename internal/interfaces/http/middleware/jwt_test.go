package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/listingsync/internal/infrastructure/auth"
	"github.com/erp/listingsync/internal/infrastructure/config"
	"github.com/erp/listingsync/internal/infrastructure/logger"
	"github.com/erp/listingsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "test-issuer",
	})
}

func newJWTRouter(t *testing.T, svc *auth.JWTService, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/test", handler)
	return router
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	storeID, userID := uuid.New(), uuid.New()
	token, err := svc.IssueToken(storeID, userID, time.Hour)
	require.NoError(t, err)

	router := newJWTRouter(t, svc, func(c *gin.Context) {
		got, ok := GetStoreID(c)
		assert.True(t, ok)
		assert.Equal(t, storeID, got)
		assert.Equal(t, userID.String(), GetJWTUserID(c))
		assert.NotNil(t, GetJWTClaims(c))
		assert.Equal(t, storeID.String(), logger.GetStoreID(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService()
	expired, err := svc.IssueToken(uuid.New(), uuid.New(), -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{name: "missing header", header: "", wantCode: dto.ErrCodeTokenInvalid},
		{name: "wrong scheme", header: "Basic abc", wantCode: dto.ErrCodeTokenInvalid},
		{name: "empty bearer", header: "Bearer ", wantCode: dto.ErrCodeTokenInvalid},
		{name: "garbage token", header: "Bearer not-a-token", wantCode: dto.ErrCodeTokenInvalid},
		{name: "expired token", header: "Bearer " + expired, wantCode: dto.ErrCodeTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newJWTRouter(t, svc, func(c *gin.Context) {
				t.Fatal("handler must not run")
			})
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	router := newJWTRouter(t, newTestJWTService(), func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetStoreID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetStoreID(c)
	assert.False(t, ok)

	c.Set(JWTStoreIDKey, "not-a-uuid")
	_, ok = GetStoreID(c)
	assert.False(t, ok)
}
