package controllers

import (
	"net/http"
	"strconv"

	"terretahub/leveling"
	"terretahub/middlewares"
	"terretahub/models"
	"terretahub/services"
	"terretahub/store"
	"terretahub/structs"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// XPController serves levels, the XP ledger and profile saves
type XPController struct {
	Profiles *services.ProfileService
	Sync     *services.ProfileLevelSync
	Activity *services.ActivityService
	Ledger   *services.XpLedger
	Audit    store.Admins
}

// GetLevels returns the public threshold table
func (x *XPController) GetLevels(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"levels": leveling.Tiers(), "actions": services.Actions()})
}

func (x *XPController) GetMyLevel(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	profile, summary, err := x.Profiles.GetProfile(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, "Failed to load level", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": profile, "level": summary})
}

// UpdateProfile saves the caller's profile and grants completion rewards
func (x *XPController) UpdateProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var fields models.ProfileFields
	if err := ctx.ShouldBindJSON(&fields); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	result, err := x.Profiles.UpdateProfile(ctx.Request.Context(), userID, fields)
	if err != nil {
		respondError(ctx, "Failed to update profile", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (x *XPController) GetMyHistory(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	x.history(ctx, userID)
}

// AwardXP is the HTTP face of add_user_xp
func (x *XPController) AwardXP(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var request structs.AwardXPRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	update, err := x.Activity.AddUserXP(ctx.Request.Context(), userID, request.Action, request.Description)
	if err != nil {
		respondError(ctx, "Failed to award XP", err)
		return
	}
	ctx.JSON(http.StatusOK, levelResponse(update))
}

func (x *XPController) GetLeaderboard(ctx *gin.Context) {
	entries, err := x.Profiles.Leaderboard(ctx.Request.Context(), listLimit(ctx))
	if err != nil {
		respondError(ctx, "Failed to load leaderboard", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// SetUserLevel lets an administrator force a member's level
func (x *XPController) SetUserLevel(ctx *gin.Context) {
	userID, ok := pathUserID(ctx)
	if !ok {
		return
	}

	var request structs.SetLevelRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	update, err := x.Sync.AssignLevel(ctx.Request.Context(), userID, request.Level)
	if err != nil {
		respondError(ctx, "Failed to set level", err)
		return
	}
	x.audit(ctx, "set_level", userID, update, gin.H{"level": request.Level})
	ctx.JSON(http.StatusOK, levelResponse(update))
}

// SetUserExperience lets an administrator correct a member's experience
func (x *XPController) SetUserExperience(ctx *gin.Context) {
	userID, ok := pathUserID(ctx)
	if !ok {
		return
	}

	var request structs.SetExperienceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	update, err := x.Sync.SetExperience(ctx.Request.Context(), userID, *request.Experience)
	if err != nil {
		respondError(ctx, "Failed to set experience", err)
		return
	}
	x.audit(ctx, "set_experience", userID, update, gin.H{"experience": *request.Experience})
	ctx.JSON(http.StatusOK, levelResponse(update))
}

func (x *XPController) GetUserLedger(ctx *gin.Context) {
	userID, ok := pathUserID(ctx)
	if !ok {
		return
	}
	x.history(ctx, userID)
}

func (x *XPController) history(ctx *gin.Context, userID primitive.ObjectID) {
	entries, err := x.Ledger.History(ctx.Request.Context(), userID, ctx.Query("prefix"), listLimit(ctx))
	if err != nil {
		respondError(ctx, "Failed to load XP history", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"history": entries})
}

// audit failures are logged by the request logger and never fail the change
func (x *XPController) audit(ctx *gin.Context, action string, userID primitive.ObjectID, update *services.LevelUpdate, details gin.H) {
	details["oldLevel"] = update.OldLevel
	details["newLevel"] = update.NewLevel
	if update.Entry != nil {
		details["xpAmount"] = update.Entry.XPAmount
	}
	if err := middlewares.LogAdminAction(ctx, x.Audit, action, userID, details); err != nil {
		ctx.Error(err)
	}
}

func levelResponse(update *services.LevelUpdate) gin.H {
	return gin.H{
		"profile":  update.Profile,
		"level":    leveling.Summarize(update.Profile.Experience, update.Profile.Level),
		"oldLevel": update.OldLevel,
		"newLevel": update.NewLevel,
		"entry":    update.Entry,
	}
}

func pathUserID(ctx *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func listLimit(ctx *gin.Context) int {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
