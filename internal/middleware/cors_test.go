package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aranya-one/toastd/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestDefaultCORSConfig(t *testing.T) {
	config := middleware.DefaultCORSConfig()

	assert.Equal(t, []string{"*"}, config.AllowOrigins)
	assert.Contains(t, config.AllowMethods, echo.PATCH)
	assert.Contains(t, config.AllowMethods, echo.DELETE)
	assert.NotContains(t, config.AllowMethods, echo.PUT)
	assert.Contains(t, config.AllowHeaders, echo.HeaderContentType)
	assert.Contains(t, config.ExposeHeaders, echo.HeaderXRequestID)
	assert.Equal(t, middleware.DefaultCORSMaxAge, config.MaxAge)
}

func newCORSEcho(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.Use(mw)
	e.GET("/api/v1/notifications", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name          string
		middleware    echo.MiddlewareFunc
		origin        string
		expectAllowed string
	}{
		{
			name:          "default allows any origin",
			middleware:    middleware.CORS(middleware.DefaultCORSConfig()),
			origin:        "https://dashboard.example.com",
			expectAllowed: "*",
		},
		{
			name:          "listed origin is echoed",
			middleware:    middleware.CORSWithOrigins("https://dashboard.example.com"),
			origin:        "https://dashboard.example.com",
			expectAllowed: "https://dashboard.example.com",
		},
		{
			name:          "unlisted origin gets no header",
			middleware:    middleware.CORSWithOrigins("https://dashboard.example.com"),
			origin:        "https://evil.example.com",
			expectAllowed: "",
		},
		{
			name:          "no origins keeps wildcard",
			middleware:    middleware.CORSWithOrigins(),
			origin:        "https://anything.example.com",
			expectAllowed: "*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newCORSEcho(tt.middleware)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
			req.Header.Set(echo.HeaderOrigin, tt.origin)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.expectAllowed, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newCORSEcho(middleware.CORS(middleware.DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/notifications", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dashboard.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPatch)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPatch)
	assert.Equal(t, "86400", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORSExposeHeaders(t *testing.T) {
	e := newCORSEcho(middleware.CORS(middleware.DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dashboard.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	exposed := rec.Header().Get(echo.HeaderAccessControlExposeHeaders)
	assert.Contains(t, exposed, echo.HeaderXRequestID)
	assert.Contains(t, exposed, "X-Ratelimit-Remaining")
}
