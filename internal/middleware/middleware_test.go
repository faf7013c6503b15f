package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiTelo/API-Football/internal/metrics"
	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/ratelimit"
	"github.com/SamiTelo/API-Football/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticUsers map[int64]models.User

func (s staticUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	user, ok := s[id]
	if !ok {
		return models.User{}, errors.New("not found")
	}
	return user, nil
}

func testSigner() *security.TokenSigner {
	return security.NewTokenSigner(map[security.Purpose]security.Key{
		security.PurposeAccess:  {Secret: "access-secret", TTL: time.Hour},
		security.PurposeRefresh: {Secret: "refresh-secret", TTL: 24 * time.Hour},
	})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndRoles(t *testing.T) {
	signer := testSigner()
	admin := models.User{ID: 1, Email: "admin@x.com", Role: &models.Role{Name: models.RoleAdmin, Permissions: []models.Permission{models.PermissionManageTeam}}}
	user := models.User{ID: 2, Email: "user@x.com", Role: &models.Role{Name: models.RoleUser}}
	users := staticUsers{1: admin, 2: user}

	r := gin.New()
	r.GET("/admin", Auth(signer, users), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		current, _ := CurrentUser(c)
		c.String(http.StatusOK, current.Email)
	})
	r.GET("/teams", Auth(signer, users), RequirePermissions(models.PermissionManageTeam), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	bearer := func(id int64) string {
		token, err := signer.Issue(security.PurposeAccess, security.Payload{UserID: id})
		require.NoError(t, err)
		return "Bearer " + token
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", bearer(1))
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin@x.com", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", bearer(2))
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/teams", nil)
	req.Header.Set("Authorization", bearer(2))
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/teams", nil)
	req.Header.Set("Authorization", bearer(1))
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestAuthRejectsRefreshToken(t *testing.T) {
	signer := testSigner()
	token, err := signer.Issue(security.PurposeRefresh, security.Payload{UserID: 1})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/profile", Auth(signer, staticUsers{1: {ID: 1}}), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

type fakeLimiter struct {
	result ratelimit.Result
	err    error
}

func (f fakeLimiter) Allow(context.Context, ratelimit.Rule, string) (ratelimit.Result, error) {
	return f.result, f.err
}

func TestRateLimit(t *testing.T) {
	rule := ratelimit.Rule{Scope: "login", Limit: 5, Window: time.Minute}
	tests := []struct {
		name    string
		limiter fakeLimiter
		want    int
	}{
		{"allowed", fakeLimiter{result: ratelimit.Result{Allowed: true, Remaining: 4}}, http.StatusOK},
		{"blocked", fakeLimiter{result: ratelimit.Result{Allowed: false, RetryAfter: 1500 * time.Millisecond}}, http.StatusTooManyRequests},
		{"backend down", fakeLimiter{err: errors.New("redis down")}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/auth/login", RateLimit(tt.limiter, rule, metrics.New(), zerolog.Nop()), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := serve(r, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusTooManyRequests {
				assert.Equal(t, "2", w.Header().Get("Retry-After"))
				assert.Contains(t, w.Body.String(), "Trop de requêtes")
			}
		})
	}
}

func TestRequestIDReplacesInvalidHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	w := serve(r, req)

	assert.NotEqual(t, "not-a-uuid", w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(requestIDHeader))
}

func TestRecoveryReturns500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(zerolog.Nop()), Recovery(zerolog.Nop()))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_server_error")
}

func TestRequestLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(zerolog.New(&buf)))
	r.GET("/", func(c *gin.Context) {
		RequestLogger(c, zerolog.Nop()).Info().Msg("handled")
		c.Status(http.StatusOK)
	})

	const id = "3b241101-e2bb-4255-8caf-4136c566a962"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, id)
	w := serve(r, req)

	assert.Equal(t, id, w.Header().Get(requestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"`+id+`"`)
}

func TestRecoveryLogsThroughRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(zerolog.New(&buf)), Recovery(zerolog.Nop()))
	r.GET("/players/:id", func(*gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/players/1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), `"route":"/players/:id"`)
	assert.Contains(t, buf.String(), `"panic":"boom"`)
	assert.Contains(t, buf.String(), `"request_id":"`+w.Header().Get(requestIDHeader)+`"`)
}
