package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-attend/internal/shared/contextutil"
)

// ContextPropagate copies the identifiers set by AuthMiddleware into
// the request's standard context and attaches a request-scoped logger.
// Must run after AuthMiddleware and RequestID.
func ContextPropagate(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetString("request_id")
		uid := c.GetString("user_id")
		cid := c.GetString("company_id")

		reqLogger := logger.With(
			zap.String("request_id", rid),
			zap.String("user_id", uid),
			zap.String("company_id", cid),
		)

		ctx := c.Request.Context()
		ctx = contextutil.WithUserID(ctx, uid)
		ctx = contextutil.WithCompanyID(ctx, cid)
		ctx = contextutil.WithLogger(ctx, reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
