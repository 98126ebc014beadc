package tenant

import (
	"github.com/gin-gonic/gin"

	"go-attend/internal/middleware"
	"go-attend/internal/rbac"
)

func RegisterRoutes(r *gin.RouterGroup, h *SettingsHandler, rbacService rbac.Service) {
	settings := r.Group("/settings")
	settings.Use(middleware.AuthMiddleware())
	{
		settings.GET("", middleware.RBACAuthorize(rbacService, "settings", "read"), h.Get)
		settings.PUT("", middleware.RBACAuthorize(rbacService, "settings", "manage"), h.Update)
	}
}
