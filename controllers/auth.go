package controllers

import (
	"errors"
	"net/http"

	"terretahub/services"
	"terretahub/structs"
	"terretahub/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthController handles member and administrator sign-in
type AuthController struct {
	Identity services.IdentityProvider
	Profiles *services.ProfileService
	Admins   *services.AdminService
	Logger   *zap.Logger
}

func (a *AuthController) SignUp(ctx *gin.Context) {
	var request structs.SignUpRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	if err := a.Identity.SignUp(ctx.Request.Context(), request.Email, request.Password); err != nil {
		a.Logger.Warn("sign-up failed", zap.String("email", request.Email), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign up", "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Sign-up successful"})
}

// VerifyEmail confirms the registration and creates the member's profile at
// level 1 with no experience
func (a *AuthController) VerifyEmail(ctx *gin.Context) {
	var request structs.VerifyEmailRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	if err := a.Identity.ConfirmSignUp(ctx.Request.Context(), request.Email, request.ConfirmationCode); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify email", "message": err.Error()})
		return
	}

	displayName := request.DisplayName
	if displayName == "" {
		displayName = utils.ExtractNameFromEmail(request.Email)
	}
	profile, err := a.Profiles.CreateProfile(ctx.Request.Context(), request.Email, displayName)
	if err != nil {
		a.Logger.Error("failed to create profile", zap.String("email", request.Email), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create profile", "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Email verification successful", "profile": profile})
}

func (a *AuthController) Login(ctx *gin.Context) {
	var request structs.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": "Check email and password format"})
		return
	}

	if err := a.Identity.Login(ctx.Request.Context(), request.Email, request.Password); err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Failed to sign in", "message": "Invalid email or password"})
		return
	}

	// Accounts confirmed before profiles existed get one on first login.
	profile, err := a.Profiles.GetProfileByEmail(ctx.Request.Context(), request.Email)
	if errors.Is(err, services.ErrProfileNotFound) {
		profile, err = a.Profiles.CreateProfile(ctx.Request.Context(), request.Email, utils.ExtractNameFromEmail(request.Email))
	}
	if err != nil {
		a.Logger.Error("failed to load profile on login", zap.String("email", request.Email), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in", "message": err.Error()})
		return
	}

	token, err := utils.GenerateJWTToken(profile.ID.Hex(), profile.Email)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token", "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Sign-in successful", "accessToken": token, "profile": profile})
}

func (a *AuthController) AdminLogin(ctx *gin.Context) {
	var request structs.AdminLoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		return
	}

	admin, err := a.Admins.Authenticate(ctx.Request.Context(), request.Email, request.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in", "message": err.Error()})
		return
	}

	token, err := utils.GenerateAdminToken(admin.ID.Hex(), admin.Email, admin.Role)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token", "message": err.Error()})
		return
	}

	a.Logger.Info("admin signed in", zap.String("email", admin.Email), zap.String("role", admin.Role))
	ctx.JSON(http.StatusOK, gin.H{
		"message":     "Admin sign-in successful",
		"accessToken": token,
		"admin": gin.H{
			"id":    admin.ID.Hex(),
			"email": admin.Email,
			"name":  admin.Name,
			"role":  admin.Role,
		},
	})
}
