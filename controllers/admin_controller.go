package controllers

import (
	"net/http"

	"terretahub/services"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	Admins *services.AdminService
}

// GetAdminLogs returns the most recent admin actions
func (a *AdminController) GetAdminLogs(ctx *gin.Context) {
	logs, err := a.Admins.Logs(ctx.Request.Context(), listLimit(ctx))
	if err != nil {
		respondError(ctx, "Failed to load admin logs", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"logs": logs})
}
