package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"terretahub/models"
	"terretahub/store"
	"terretahub/utils"
)

var (
	// ErrInvalidRole is returned for roles other than admin and moderator.
	ErrInvalidRole = errors.New("invalid role")

	// ErrAdminExists is returned when an admin with the same email exists.
	ErrAdminExists = errors.New("admin already exists")
)

// AdminService manages administrator accounts.
type AdminService struct {
	admins store.Admins
}

func NewAdminService(admins store.Admins) *AdminService {
	return &AdminService{admins: admins}
}

// CreateAdmin stores a new administrator with a bcrypt password hash.
func (s *AdminService) CreateAdmin(ctx context.Context, email, password, name, role string) (*models.Admin, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &models.Admin{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: hash,
		Role:     role,
		Name:     name,
	}
	if err := s.admins.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrAdminExists
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return admin, nil
}

// Authenticate checks an administrator's password.
func (s *AdminService) Authenticate(ctx context.Context, email, password string) (*models.Admin, error) {
	admin, err := s.admins.GetAdminByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	if !utils.CheckPasswordHash(password, admin.Password) {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// Logs returns the most recent admin actions.
func (s *AdminService) Logs(ctx context.Context, limit int) ([]models.AdminActionLog, error) {
	return s.admins.AdminLogs(ctx, limit)
}
