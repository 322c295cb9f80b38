package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civicsafe/api/internal/auth"
	"github.com/civicsafe/api/internal/model"
	"github.com/civicsafe/api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&model.User{ID: 9, Email: "a@b.test", Name: "A", Role: role}, testSecret)
	require.NoError(t, err)
	return tok
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		id := CurrentIdentity(c)
		if id == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, string(id.Role))
	})
	r.GET("/", handlers...)
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(testSecret))

	w := do(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, tokenFor(t, "USER"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "USER", w.Body.String())
}

func TestAuthMiddlewareRejectsUnknownRole(t *testing.T) {
	r := newRouter(AuthMiddleware(testSecret))
	w := do(r, tokenFor(t, "ROOT"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := newRouter(AuthMiddleware(testSecret), RequireRole(auth.RoleAdmin, auth.RoleModerator))

	assert.Equal(t, http.StatusForbidden, do(r, tokenFor(t, "USER")).Code)
	assert.Equal(t, http.StatusOK, do(r, tokenFor(t, "MODERATOR")).Code)
	assert.Equal(t, http.StatusOK, do(r, tokenFor(t, "ADMIN")).Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	r := newRouter(OptionalAuthMiddleware(testSecret))

	assert.Equal(t, "anonymous", do(r, "").Body.String())
	assert.Equal(t, "anonymous", do(r, "bad-token").Body.String())
	assert.Equal(t, "ADMIN", do(r, tokenFor(t, "ADMIN")).Body.String())
}

type fakeChecker struct {
	result  *ratelimit.CheckResult
	err     error
	clients []string
}

func (f *fakeChecker) Check(_ context.Context, clientID, _ string) (*ratelimit.CheckResult, error) {
	f.clients = append(f.clients, clientID)
	return f.result, f.err
}

func TestRateLimitMiddleware(t *testing.T) {
	checker := &fakeChecker{result: &ratelimit.CheckResult{Allowed: false, Limit: 5, ResetAt: 1700000000}}
	r := newRouter(RateLimitMiddleware(checker, ratelimit.ActionClassify, zap.NewNop()))

	w := do(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Len(t, checker.clients, 1)
	assert.Contains(t, checker.clients[0], "ip:")
}

func TestRateLimitMiddlewareKeysByUser(t *testing.T) {
	checker := &fakeChecker{result: &ratelimit.CheckResult{Allowed: true, Limit: 5, Remaining: 4}}
	r := newRouter(OptionalAuthMiddleware(testSecret), RateLimitMiddleware(checker, ratelimit.ActionChat, zap.NewNop()))

	w := do(r, tokenFor(t, "USER"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user:9"}, checker.clients)
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	checker := &fakeChecker{err: errors.New("redis down")}
	r := newRouter(RateLimitMiddleware(checker, ratelimit.ActionChat, zap.NewNop()))
	assert.Equal(t, http.StatusOK, do(r, "").Code)
}
