package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

// ─── Rate limiting ──────────────────────────────────────────────────────────

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
	w := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.ErrRateLimitExceeded, errorCode(t, w))

	// Buckets are per client.
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2").Code)
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.GetLimiter("old")
	now = now.Add(2 * time.Minute)
	rl.GetLimiter("fresh")
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, rl.Sweep())
	_, ok := rl.visitors["fresh"]
	assert.True(t, ok)
}

// ─── JWT + RBAC ─────────────────────────────────────────────────────────────

func adminRouter(auth *service.AuthService) *gin.Engine {
	r := gin.New()
	r.Use(RequireAdminJWT(auth))
	r.GET("/monitor", RequirePermission(service.PermissionExamsMonitor), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})
	return r
}

func TestRequireAdminJWT(t *testing.T) {
	auth := service.NewAuthService("secret")
	r := adminRouter(auth)

	good, err := auth.GenerateAdminToken(9, 1, []string{service.PermissionExamsMonitor}, time.Hour)
	require.NoError(t, err)
	noPerm, err := auth.GenerateAdminToken(9, 1, nil, time.Hour)
	require.NoError(t, err)
	expired, err := auth.GenerateAdminToken(9, 1, []string{service.PermissionExamsMonitor}, -time.Hour)
	require.NoError(t, err)
	student, err := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TokenType:        service.TokenTypeStudent,
		UserID:           3,
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		query  string
		status int
		code   response.ErrCode
	}{
		{name: "missing", status: http.StatusUnauthorized, code: response.ErrTokenRequired},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized, code: response.ErrTokenInvalid},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized, code: response.ErrTokenExpired},
		{name: "student", header: "Bearer " + student, status: http.StatusForbidden, code: response.ErrAdminAccessOnly},
		{name: "no permission", header: "Bearer " + noPerm, status: http.StatusForbidden, code: response.ErrPermissionDenied},
		{name: "header", header: "bearer " + good, status: http.StatusOK},
		{name: "query", query: "?token=" + good, status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/monitor"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, errorCode(t, w))
			} else {
				assert.Equal(t, "9", w.Body.String())
			}
		})
	}
}

// ─── Caching headers ────────────────────────────────────────────────────────

func TestCacheHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/public", CacheControl(30*time.Second), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/private", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))
	assert.Equal(t, "public, max-age=30", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

// ─── Compression ────────────────────────────────────────────────────────────

func brotliRouter(body string) *gin.Engine {
	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 64, ExcludedPaths: []string{"/metrics"}}))
	handler := func(c *gin.Context) { c.String(http.StatusOK, body) }
	r.GET("/data", handler)
	r.GET("/metrics", handler)
	return r
}

func TestBrotli_CompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("exam ", 100)
	r := brotliRouter(body)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	r.ServeHTTP(w, req)

	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))
}

func TestBrotli_PassThrough(t *testing.T) {
	cases := map[string]struct {
		path, accept, body string
	}{
		"small body":      {path: "/data", accept: "br", body: "ok"},
		"no br accepted":  {path: "/data", accept: "gzip", body: strings.Repeat("x", 200)},
		"excluded prefix": {path: "/metrics", accept: "br", body: strings.Repeat("x", 200)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := brotliRouter(tc.body)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header.Set("Accept-Encoding", tc.accept)
			r.ServeHTTP(w, req)

			assert.Empty(t, w.Header().Get("Content-Encoding"))
			assert.Equal(t, tc.body, w.Body.String())
		})
	}
}
