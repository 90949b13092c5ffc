package controllers

import (
	"errors"
	"net/http"

	"terretahub/leveling"
	"terretahub/services"
	"terretahub/store"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to HTTP statuses
func respondError(ctx *gin.Context, action string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, leveling.ErrInvalidLevel),
		errors.Is(err, services.ErrUnknownAction),
		errors.Is(err, services.ErrReservedDescription):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrProfileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateGrant),
		errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, services.ErrLedgerUnavailable):
		status = http.StatusServiceUnavailable
	}
	ctx.Error(err)
	ctx.JSON(status, gin.H{"error": action, "message": err.Error()})
}
