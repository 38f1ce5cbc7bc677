package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromatech/advisor/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "jwt-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := JWTConfig{Secret: testSecret, Issuer: "https://auth.example/v1", Audience: "authenticated"}
	r := gin.New()
	r.GET("/", JWTAuth(cfg), whoami)

	valid := signToken(t, jwt.MapClaims{
		"sub":          "user-7",
		"iss":          "https://auth.example/v1",
		"aud":          "authenticated",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]any{"role": "admin"},
	}, testSecret)

	w := serve(r, "Bearer "+valid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"user-7","role":"admin"}`, w.Body.String())

	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"bad secret":   "Bearer " + signToken(t, jwt.MapClaims{"sub": "u", "iss": cfg.Issuer, "aud": cfg.Audience}, "other"),
		"expired":      "Bearer " + signToken(t, jwt.MapClaims{"sub": "u", "iss": cfg.Issuer, "aud": cfg.Audience, "exp": time.Now().Add(-time.Hour).Unix()}, testSecret),
		"wrong issuer": "Bearer " + signToken(t, jwt.MapClaims{"sub": "u", "iss": "evil", "aud": cfg.Audience}, testSecret),
		"wrong aud":    "Bearer " + signToken(t, jwt.MapClaims{"sub": "u", "iss": cfg.Issuer, "aud": "anon"}, testSecret),
		"no subject":   "Bearer " + signToken(t, jwt.MapClaims{"iss": cfg.Issuer, "aud": cfg.Audience}, testSecret),
	}
	for name, header := range cases {
		w := serve(r, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestJWTAuth_NoSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", JWTAuth(JWTConfig{}), whoami)

	w := serve(r, "Bearer x")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOptionalJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", OptionalJWT(JWTConfig{Secret: testSecret}), whoami)

	w := serve(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"","role":""}`, w.Body.String())

	w = serve(r, "Bearer "+signToken(t, jwt.MapClaims{"sub": "user-1"}, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"user-1","role":"user"}`, w.Body.String())

	w = serve(r, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	withRole := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if role != "" {
				c.Set("role", role)
			}
			c.Next()
		}
	}

	for role, want := range map[string]int{"admin": http.StatusOK, "ADMIN": http.StatusOK, "user": http.StatusForbidden, "": http.StatusForbidden} {
		r := gin.New()
		r.GET("/", withRole(role), RequireAdmin(), whoami)
		w := serve(r, "")
		assert.Equal(t, want, w.Code, role)
	}
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := test.NewNullLogger()

	var seen string
	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/", func(c *gin.Context) {
		seen = utils.RequestID(c.Request.Context())
		c.Status(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "req-1", entry.Data["request_id"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
