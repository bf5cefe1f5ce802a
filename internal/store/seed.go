// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/gymsite/internal/auth"
	"github.com/olegiv/gymsite/internal/model"
)

// DefaultAdminName is used for the seeded admin account.
const DefaultAdminName = "Administrator"

// SeedAdmin creates the first admin account when the users table is empty.
// It is a no-op when users exist or no credentials are configured.
func SeedAdmin(ctx context.Context, db *sql.DB, email, password string) error {
	queries := New(db)

	count, err := queries.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		slog.Debug("users exist, skipping admin seed")
		return nil
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		slog.Warn("no users exist and GYM_ADMIN_EMAIL/GYM_ADMIN_PASSWORD are not set; admin login is unavailable",
			"category", model.LogCategoryAuth)
		return nil
	}
	if err := auth.ValidatePassword(password); err != nil {
		return fmt.Errorf("GYM_ADMIN_PASSWORD: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Name:         DefaultAdminName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created admin user", "id", user.ID, "email", user.Email)
	return nil
}
