package risk

import (
	"github.com/gin-gonic/gin"

	"go-attend/internal/middleware"
	"go-attend/internal/rbac"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	assessments := r.Group("/risk-assessments")
	assessments.Use(middleware.AuthMiddleware())
	{
		assessments.GET("", middleware.RBACAuthorize(rbacService, "risk", "read"), h.GetAll)
		assessments.GET("/flagged", middleware.RBACAuthorize(rbacService, "risk", "read"), h.GetFlagged)
	}
}
