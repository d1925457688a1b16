package middleware

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jaevor/go-nanoid"
	"github.com/serroba/rates-proxy-go/internal/handlers"
	"go.uber.org/zap"
)

const requestIDLength = 12

// RequestMeta is a middleware that stamps each request with an ID and adds
// client IP and user-agent to the request context, then logs the access.
func RequestMeta(_ huma.API, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	generate, err := nanoid.Standard(requestIDLength)
	if err != nil {
		logger.Fatal("failed to build request id generator", zap.Error(err))
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			RequestID: generate(),
			ClientIP:  extractClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		logger.Debug("request received",
			zap.String("request_id", meta.RequestID),
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.URL().Path),
			zap.String("client_ip", meta.ClientIP),
		)

		next(ctx)
	}
}

func extractClientIP(ctx huma.Context) string {
	// Check X-Forwarded-For first (may contain multiple IPs)
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		// Take the first IP (original client)
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP
	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to remote addr
	host := ctx.Host()
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}

	return host
}
