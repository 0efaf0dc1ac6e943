package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type recordingObserver struct {
	method string
	path   string
	status int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.method, r.path, r.status = method, path, status
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{Role: models.RoleAdmin}}
	r := newEngine(JWT(validator))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Contains(t, w.Body.String(), "missing or malformed authorization header")
	}
	assert.Empty(t, validator.seen)
}

func TestJWTStoresClaims(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher}}
	r := newEngine(JWT(validator))
	var got *models.JWTClaims
	r.GET("/x", func(c *gin.Context) {
		got = CurrentClaims(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "bearer tok-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-123", validator.seen)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.UserID)
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	validator := &stubValidator{err: appErrors.Wrap(errors.New("expired"), appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid token")}
	r := newEngine(JWT(validator))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoles(t *testing.T) {
	withClaims := func(role models.UserRole) gin.HandlerFunc {
		return func(c *gin.Context) {
			if role != "" {
				c.Set(ContextUserKey, &models.JWTClaims{Role: role})
			}
			c.Next()
		}
	}

	cases := []struct {
		role   models.UserRole
		status int
	}{
		{"", http.StatusUnauthorized},
		{models.RoleStudent, http.StatusForbidden},
		{models.RoleTeacher, http.StatusForbidden},
		{models.RoleAdmin, http.StatusOK},
		{models.RoleSuperAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		r := newEngine(withClaims(tc.role), RequireRoles(WriterRoles...))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, tc.status, w.Code, string(tc.role))
	}
}

func TestResponseMeta(t *testing.T) {
	r := newEngine(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/x", func(c *gin.Context) {
		SetConflicts(c, []models.ConflictWarning{})
		assert.NotContains(t, ExtractMeta(c), conflictsKey)

		SetCacheHit(c, true)
		SetConflicts(c, []models.ConflictWarning{{Dimension: models.ConflictRoom}})
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Len(t, meta["conflicts"], 1)
	assert.Contains(t, meta, "processing_time_ms")
}

func TestResponseMetaProcessingTimeReachesBody(t *testing.T) {
	r := newEngine(WithResponseMeta())
	r.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, false)
		c.JSON(http.StatusOK, gin.H{"meta": ExtractMeta(c)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Meta, "processing_time_ms")
	assert.Equal(t, false, body.Meta["cache_hit"])
}

func TestExtractMetaWithoutMiddleware(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) {
		assert.Nil(t, ExtractMeta(c))
		SetCacheHit(c, true)
		assert.NotContains(t, ExtractMeta(c), "processing_time_ms")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
}

func TestMetricsLabelsRouteTemplate(t *testing.T) {
	observer := &recordingObserver{}
	r := newEngine(Metrics(observer))
	r.GET("/classes/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/classes/c-42", nil))
	assert.Equal(t, "/classes/:id", observer.path)
	assert.Equal(t, http.StatusAccepted, observer.status)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, "unmatched", observer.path)
	assert.Equal(t, http.StatusNotFound, observer.status)
}
