package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAuth(t *testing.T) (*AuthService, string) {
	t.Helper()
	secret, url, err := GenerateSecret("ops@example.com")
	require.NoError(t, err)
	assert.Contains(t, url, "otpauth://totp/")
	return NewAuthService(zap.NewNop(), secret, "jwt-test-secret", time.Hour), secret
}

func TestAuth_Login(t *testing.T) {
	auth, secret := newTestAuth(t)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	token, expires, err := auth.Login(code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)
	assert.True(t, auth.isValidSession(token))

	_, _, err = auth.Login("000000x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_SessionExpiry(t *testing.T) {
	auth, _ := newTestAuth(t)

	token, _, err := auth.CreateSession()
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.False(t, auth.isValidSession(token))
}

func TestAuth_SessionSignedWithOtherKey(t *testing.T) {
	auth, secret := newTestAuth(t)
	other := NewAuthService(zap.NewNop(), secret, "another-secret", time.Hour)

	token, _, err := other.CreateSession()
	require.NoError(t, err)
	assert.False(t, auth.isValidSession(token))
	assert.False(t, auth.isValidSession("not-a-jwt"))
}

func TestAuth_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth, _ := newTestAuth(t)
	token, _, err := auth.CreateSession()
	require.NoError(t, err)

	router := gin.New()
	router.Use(auth.AuthMiddleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/health", ok)
	router.POST("/api/v1/auth/login", ok)
	router.GET("/api/v1/jobs", ok)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		cookie string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"login is public", http.MethodPost, "/api/v1/auth/login", "", "", http.StatusOK},
		{"no credentials", http.MethodGet, "/api/v1/jobs", "", "", http.StatusUnauthorized},
		{"bearer token", http.MethodGet, "/api/v1/jobs", "Bearer " + token, "", http.StatusOK},
		{"lowercase scheme", http.MethodGet, "/api/v1/jobs", "bearer " + token, "", http.StatusOK},
		{"cookie", http.MethodGet, "/api/v1/jobs", "", token, http.StatusOK},
		{"garbage token", http.MethodGet, "/api/v1/jobs", "Bearer nope", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("Bearer "))
}
