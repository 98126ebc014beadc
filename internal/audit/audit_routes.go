package audit

import (
	"github.com/gin-gonic/gin"

	"go-attend/internal/middleware"
	"go-attend/internal/rbac"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	records := r.Group("/audit-records")
	records.Use(middleware.AuthMiddleware())
	{
		records.GET("", middleware.RBACAuthorize(rbacService, "audit", "read"), h.GetAll)
	}
}
