package checkin

import (
	"github.com/gin-gonic/gin"

	"go-attend/internal/middleware"
	"go-attend/internal/rbac"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	attendance := r.Group("/attendance")
	attendance.Use(middleware.AuthMiddleware())
	{
		attendance.POST("/events", middleware.RBACAuthorize(rbacService, "attendance", "submit"), h.Submit)
		attendance.GET("/events", middleware.RBACAuthorize(rbacService, "attendance", "read"), h.GetHistory)
	}

	conflicts := r.Group("/conflicts")
	conflicts.Use(middleware.AuthMiddleware())
	{
		conflicts.GET("", middleware.RBACAuthorize(rbacService, "conflict", "read"), h.GetOpenConflicts)
		conflicts.POST("/:id/resolve", middleware.RBACAuthorize(rbacService, "conflict", "resolve"), h.ResolveConflict)
	}
}
