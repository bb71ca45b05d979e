package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
)

// DefaultStackSize is the default stack trace size (4KB).
const DefaultStackSize = 4 << 10

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// Logger is the structured logger to use for panic logging.
	Logger *slog.Logger

	// StackSize is the maximum size of the stack trace to capture.
	StackSize int

	// DisableStackAll captures only the panicking goroutine's stack.
	DisableStackAll bool

	// DisablePrintStack leaves the stack trace out of the log entry.
	DisablePrintStack bool

	// OnPanic is called once per recovered panic, e.g. to count them.
	OnPanic func(path string)
}

// DefaultRecoveryConfig returns a RecoveryConfig with sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:          slog.Default(),
		StackSize:       DefaultStackSize,
		DisableStackAll: true,
	}
}

// Recovery returns a middleware that recovers from panics and logs the error.
func Recovery(logger *slog.Logger) echo.MiddlewareFunc {
	config := DefaultRecoveryConfig()
	config.Logger = logger
	return RecoveryWithConfig(config)
}

// RecoveryWithConfig returns a recovery middleware with custom configuration.
// A panic becomes a 500 with the standard error envelope unless the response was
// already committed.
func RecoveryWithConfig(config RecoveryConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.StackSize <= 0 {
		config.StackSize = DefaultStackSize
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				panicErr, ok := r.(error)
				if !ok {
					panicErr = fmt.Errorf("%v", r)
				}

				req := c.Request()
				attrs := []slog.Attr{
					slog.String("error", panicErr.Error()),
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.String("remote_ip", c.RealIP()),
				}
				if requestID := recoveredRequestID(c); requestID != "" {
					attrs = append(attrs, slog.String("request_id", requestID))
				}
				if !config.DisablePrintStack {
					stack := make([]byte, config.StackSize)
					stack = stack[:runtime.Stack(stack, !config.DisableStackAll)]
					attrs = append(attrs, slog.String("stack", string(stack)))
				}

				config.Logger.LogAttrs(req.Context(), slog.LevelError, "panic recovered", attrs...)

				if config.OnPanic != nil {
					config.OnPanic(c.Path())
				}

				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]any{
					"success": false,
					"error": map[string]string{
						"code":    "INTERNAL_ERROR",
						"message": "An internal error occurred",
					},
				})
			}()

			return next(c)
		}
	}
}

func recoveredRequestID(c echo.Context) string {
	if id := GetRequestID(c); id != "" {
		return id
	}
	return c.Request().Header.Get(RequestIDHeader)
}
