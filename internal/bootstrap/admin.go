// Package bootstrap seeds the initial admin account so a fresh
// deployment has a working admin login.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"innovatech/accounts/internal/config"
	"innovatech/accounts/internal/ids"
	"innovatech/accounts/internal/models"
	"innovatech/accounts/internal/repository"
	"innovatech/accounts/internal/security"
	"innovatech/accounts/internal/service"
)

// EnsureAdmin creates the configured admin account if it does not
// exist yet. The account is created active and approved; it skips the
// email activation flow entirely.
func EnsureAdmin(ctx context.Context, cfg config.BootstrapConfig, users service.UserStore, log zerolog.Logger) error {
	email := service.NormalizeEmail(cfg.AdminEmail)
	if email == "" || cfg.AdminPassword == "" {
		log.Debug().Msg("admin bootstrap not configured, skipping")
		return nil
	}

	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("bootstrap lookup: %w", err)
	}

	passwordHash, err := security.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	admin := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    "Admin",
		UserType:     models.UserTypeAdmin,
		IsActive:     true,
		IsApproved:   true,
		IsStaff:      true,
		IsSuperuser:  true,
	}

	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	log.Info().Str("email", email).Msg("bootstrap admin created")
	return nil
}
