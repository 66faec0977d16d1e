package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/config"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// EnsureAdmin creates the bootstrap administrator and its default warehouse
// when they are missing. An existing admin account is left untouched.
func EnsureAdmin(ctx context.Context, s *store.Store, cfg config.AdminConfig, log zerolog.Logger) error {
	if _, ok := s.GetUser(ctx, store.AdminUserID); !ok {
		password := cfg.Password
		generated := password == ""
		if generated {
			password = uuid.NewString()
		}
		hashedPassword, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}

		_, err = s.CreateUser(ctx, models.User{
			ID:                 store.AdminUserID,
			Username:           cfg.Username,
			Password:           hashedPassword,
			Role:               models.SystemRoleAdmin,
			DefaultWarehouseID: models.DefaultWarehouseID,
		})
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("bootstrap admin: username %q belongs to another user: %w", cfg.Username, err)
		}
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}

		ev := log.Info().Str("username", cfg.Username)
		if generated {
			ev = log.Warn().Str("username", cfg.Username).Str("password", password)
		}
		ev.Msg("created default admin user")
	}

	_, err := s.CreateWarehouse(ctx, models.Warehouse{
		ID:      models.DefaultWarehouseID,
		Name:    "Admin Warehouse",
		OwnerID: store.AdminUserID,
		Type:    models.WarehouseTypePersonal,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateID) {
		return fmt.Errorf("bootstrap admin warehouse: %w", err)
	}
	return nil
}
