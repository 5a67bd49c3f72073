package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func newProtectedRouter(resource authz.Resource, action authz.Action) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := stubValidator{
		"student-token":    {UserID: "bob", Username: "bob", Role: models.RoleStudent},
		"instructor-token": {UserID: "alice", Username: "alice", Role: models.RoleInstructor},
		"unknown-role":     {UserID: "eve", Username: "eve", Role: models.UserRole("admin")},
	}
	router := gin.New()
	router.POST("/protected", JWT(tokens), Authorize(resource, action), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": Actor(c).UserID})
	})
	return router
}

func TestJWTAndAuthorize(t *testing.T) {
	router := newProtectedRouter(authz.ResourceAssignment, authz.ActionCreate)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"unknown role", "Bearer unknown-role", http.StatusUnauthorized},
		{"student denied", "Bearer student-token", http.StatusForbidden},
		{"instructor allowed", "Bearer instructor-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestAuthorizeAllowsAnyRoleWhenPolicySays(t *testing.T) {
	router := newProtectedRouter(authz.ResourceVoiceCall, authz.ActionCreate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "bearer student-token")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"bob"}`, w.Body.String())
}

func TestActorWithoutClaimsIsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, Claims(c))
	assert.False(t, Actor(c).Authenticated())

	c.Set(ContextUserKey, "not claims")
	assert.Nil(t, Claims(c))
}

type recordedRequest struct {
	method string
	path   string
	status int
}

type fakeHTTPMetrics struct {
	requests []recordedRequest
}

func (f *fakeHTTPMetrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, path, status})
}

func TestMetricsRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := &fakeHTTPMetrics{}
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/assignments/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/assignments/123", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, metrics.requests, 2)
	assert.Equal(t, recordedRequest{http.MethodGet, "/assignments/:id", http.StatusNoContent}, metrics.requests[0])
	assert.Equal(t, "unmatched", metrics.requests[1].path)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/inbox", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetMeta(c, "unread_count", 3)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	router.GET("/plain", func(c *gin.Context) {
		if ExtractMeta(c) != nil {
			c.AbortWithError(http.StatusInternalServerError, errors.New("unexpected meta"))
			return
		}
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/inbox", nil))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, 3, meta["unread_count"])
	assert.Contains(t, meta, "processing_time_ms")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
