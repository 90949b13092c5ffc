package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"terretahub/config"
	"terretahub/controllers"
	"terretahub/middlewares"
	"terretahub/models"
	"terretahub/services"
	"terretahub/store"
	"terretahub/utils"
	"terretahub/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIdentity struct {
	passwords map[string]string
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) error {
	f.passwords[email] = password
	return nil
}

func (f *fakeIdentity) ConfirmSignUp(ctx context.Context, email, code string) error {
	if code != "123456" {
		return errors.New("CodeMismatchException")
	}
	return nil
}

func (f *fakeIdentity) Login(ctx context.Context, email, password string) error {
	if f.passwords[email] != password {
		return services.ErrInvalidCredentials
	}
	return nil
}

type server struct {
	router *gin.Engine
	store  *store.Memory
	admins *services.AdminService
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret")

	logger := zap.NewNop()
	m := store.NewMemory()
	hub := websocket.NewHub(logger)
	ledger := services.NewXpLedger(m)
	levelSync := services.NewProfileLevelSync(m, hub, logger)
	rewarder := services.NewProfileChangeRewarder(ledger, levelSync, logger)
	profiles := services.NewProfileService(m, rewarder, logger)
	admins := services.NewAdminService(m)

	enforcer, err := middlewares.NewEnforcer(config.DefaultPolicies(), "", logger)
	require.NoError(t, err)

	router := gin.New()
	Register(router, Handlers{
		Auth: &controllers.AuthController{
			Identity: &fakeIdentity{passwords: map[string]string{}},
			Profiles: profiles,
			Admins:   admins,
			Logger:   logger,
		},
		XP: &controllers.XPController{
			Profiles: profiles,
			Sync:     levelSync,
			Activity: services.NewActivityService(levelSync, nil, logger),
			Ledger:   ledger,
			Audit:    m,
		},
		Admin:    &controllers.AdminController{Admins: admins},
		Hub:      hub,
		Admins:   m,
		Enforcer: enforcer,
		Health:   map[string]controllers.Pinger{"store": func(ctx context.Context) error { return nil }},
		Logger:   logger,
	})
	return &server{router: router, store: m, admins: admins}
}

func (s *server) do(t *testing.T, method, target, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

// register signs a member up and returns their token and profile id
func (s *server) register(t *testing.T, email string) (string, string) {
	t.Helper()
	code, _ := s.do(t, "POST", "/signup", "", gin.H{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, "POST", "/verifyEmail", "", gin.H{"email": email, "confirmationCode": "123456"})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, "POST", "/login", "", gin.H{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, code)
	profile := body["profile"].(map[string]interface{})
	return body["accessToken"].(string), profile["id"].(string)
}

func (s *server) adminToken(t *testing.T, email, role string) string {
	t.Helper()
	_, err := s.admins.CreateAdmin(context.Background(), email, "admin-pass", "Admin", role)
	require.NoError(t, err)
	code, body := s.do(t, "POST", "/admin/login", "", gin.H{"email": email, "password": "admin-pass"})
	require.Equal(t, http.StatusOK, code)
	return body["accessToken"].(string)
}

func TestPublicRoutes(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, "GET", "/levels", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["levels"], 13)

	code, _ = s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, "POST", "/verifyEmail", "", gin.H{"email": "x@example.com", "confirmationCode": "000000"})
	assert.Equal(t, http.StatusInternalServerError, code)

	code, _ = s.do(t, "POST", "/login", "", gin.H{"email": "x@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, "POST", "/admin/login", "", gin.H{"email": "x@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestNewMemberStartsAtLevelOne(t *testing.T) {
	s := newServer(t)
	token, _ := s.register(t, "vicenta@example.com")

	code, body := s.do(t, "GET", "/user/level", token, nil)
	require.Equal(t, http.StatusOK, code)
	level := body["level"].(map[string]interface{})
	assert.EqualValues(t, 1, level["level"])
	assert.EqualValues(t, 0, level["experience"])
	assert.Equal(t, "Newcomer", level["name"])
}

func TestProfileSaveGrantsRewardsOnce(t *testing.T) {
	s := newServer(t)
	token, _ := s.register(t, "ferran@example.com")

	fields := gin.H{"bio": "Fent barri", "avatarUrl": "https://cdn.example/f.png"}
	code, body := s.do(t, "PUT", "/user/profile", token, fields)
	require.Equal(t, http.StatusOK, code)
	assert.ElementsMatch(t, []interface{}{"+50 XP (Avatar)", "+50 XP (Bio)"}, body["messages"])
	assert.EqualValues(t, 100, body["level"].(map[string]interface{})["experience"])
	assert.EqualValues(t, 2, body["level"].(map[string]interface{})["level"])

	code, body = s.do(t, "PUT", "/user/profile", token, fields)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["messages"])

	code, body = s.do(t, "GET", "/user/xp/history?prefix=Profile:", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 2)
}

func TestAwardXP(t *testing.T) {
	s := newServer(t)
	token, _ := s.register(t, "jordi@example.com")

	code, body := s.do(t, "POST", "/xp/award", token, gin.H{"action": "domain_claimed"})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 40, body["profile"].(map[string]interface{})["experience"])

	code, _ = s.do(t, "POST", "/xp/award", token, gin.H{"action": "teleported"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, "POST", "/xp/award", token, gin.H{"action": "vote_cast", "description": "Admin: Level set to 13"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, "POST", "/xp/award", "", gin.H{"action": "vote_cast"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.do(t, "GET", "/leaderboard/xp?limit=5", token, nil)
	require.Equal(t, http.StatusOK, code)
	board := body["leaderboard"].([]interface{})
	require.Len(t, board, 1)
	assert.EqualValues(t, 40, board[0].(map[string]interface{})["experience"])
}

func TestAdminSetsLevel(t *testing.T) {
	s := newServer(t)
	memberToken, userID := s.register(t, "amparo@example.com")
	admin := s.adminToken(t, "root@example.com", models.RoleAdmin)
	moderator := s.adminToken(t, "mod@example.com", models.RoleModerator)

	code, body := s.do(t, "PUT", "/admin/users/"+userID+"/level", admin, gin.H{"level": 5})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1000, body["profile"].(map[string]interface{})["experience"])
	assert.EqualValues(t, 1000, body["entry"].(map[string]interface{})["xpAmount"])

	code, body = s.do(t, "PUT", "/admin/users/"+userID+"/level", admin, gin.H{"level": 3})
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["entry"], "experience ahead of the level needs no top-up")
	assert.EqualValues(t, 1000, body["profile"].(map[string]interface{})["experience"])
	assert.EqualValues(t, 3, body["newLevel"])

	code, _ = s.do(t, "PUT", "/admin/users/"+userID+"/level", admin, gin.H{"level": 14})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, "PUT", "/admin/users/not-an-id/level", admin, gin.H{"level": 2})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, "PUT", "/admin/users/"+userID+"/level", moderator, gin.H{"level": 2})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, "PUT", "/admin/users/"+userID+"/level", memberToken, gin.H{"level": 13})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = s.do(t, "GET", "/admin/users/"+userID+"/xp", moderator, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)

	code, body = s.do(t, "GET", "/admin/logs", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["logs"], 2)
}

func TestAdminSetsExperience(t *testing.T) {
	s := newServer(t)
	_, userID := s.register(t, "pepa@example.com")
	admin := s.adminToken(t, "root@example.com", models.RoleAdmin)

	code, body := s.do(t, "PUT", "/admin/users/"+userID+"/experience", admin, gin.H{"experience": 2200})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 7, body["newLevel"])

	code, body = s.do(t, "PUT", "/admin/users/"+userID+"/experience", admin, gin.H{"experience": 0})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["newLevel"])

	code, _ = s.do(t, "PUT", "/admin/users/"+userID+"/experience", admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}
