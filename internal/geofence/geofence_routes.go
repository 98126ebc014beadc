package geofence

import (
	"github.com/gin-gonic/gin"

	"go-attend/internal/middleware"
	"go-attend/internal/rbac"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	geofences := r.Group("/geofences")
	geofences.Use(middleware.AuthMiddleware())
	{
		geofences.GET("", middleware.RBACAuthorize(rbacService, "geofence", "read"), h.GetAll)
		geofences.POST("", middleware.RBACAuthorize(rbacService, "geofence", "manage"), h.Create)
		geofences.DELETE("/:id", middleware.RBACAuthorize(rbacService, "geofence", "manage"), h.Deactivate)
	}
}
