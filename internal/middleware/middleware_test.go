package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-intervention-api/internal/models"
	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newProtectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := JWT(validatorStub{
		"staff-token": {UserID: 10, Role: models.RoleStaff},
		"admin-token": {UserID: 1, Role: models.RoleAdmin},
	})
	handlers := []gin.HandlerFunc{auth}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": Claims(c).UserID})
	})
	r.GET("/protected", handlers...)
	return r
}

func call(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	r := newProtectedRouter()

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic staff-token", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer staff-token", http.StatusOK},
		{"lowercase scheme", "bearer staff-token", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := call(r, tc.header)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestJWTStoresClaims(t *testing.T) {
	w := call(newProtectedRouter(), "Bearer staff-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":10}`, w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	r := newProtectedRouter(models.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, call(r, "Bearer staff-token").Code)
	assert.Equal(t, http.StatusOK, call(r, "Bearer admin-token").Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, call(r, "").Code)
}

type observation struct {
	method, path string
	status       int
}

type observerStub struct {
	seen []observation
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.seen = append(o.seen, observation{method, path, status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/cases/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	for _, path := range []string{"/cases/1", "/cases/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, obs.seen, 3)
	assert.Equal(t, observation{http.MethodGet, "/cases/:id", http.StatusTeapot}, obs.seen[0])
	assert.Equal(t, "/cases/:id", obs.seen[1].path)
	assert.Equal(t, observation{http.MethodGet, "unmatched", http.StatusNotFound}, obs.seen[2])
}

