package app

import (
	"context"
	"errors"
	"fmt"

	"farmsavvy/internal/config"
	"farmsavvy/internal/domain"
	"farmsavvy/internal/engine"
	"farmsavvy/internal/repo"
)

// EnsureAdmin seeds the initial admin account from config when no user
// with the configured email exists yet. Returns the admin's id.
func EnsureAdmin(ctx context.Context, eng engine.Engine, cfg *config.Config) (string, error) {
	if cfg.Admin.Email == "" {
		return "", nil
	}
	u, err := eng.Repo.GetUserByEmail(ctx, cfg.Admin.Email)
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}
	if cfg.Admin.Password == "" {
		return "", fmt.Errorf("admin user %s missing and config.admin.password is empty", cfg.Admin.Email)
	}
	name := cfg.Admin.Name
	if name == "" {
		name = "Administrator"
	}
	u, err = eng.Register(ctx, engine.RegisterOptions{
		Name:     name,
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return "", fmt.Errorf("seed admin: %w", err)
	}
	return u.ID, nil
}
