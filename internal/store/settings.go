// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/olegiv/gymsite/internal/model"
)

const getSettings = `SELECT gym_name, phone, instagram, address, website, updated_at
FROM settings WHERE id = 1`

// GetSettings returns the singleton settings row, or zero-value settings
// when none has been saved yet.
func (q *Queries) GetSettings(ctx context.Context) (model.Settings, error) {
	var s model.Settings
	err := q.db.QueryRowContext(ctx, getSettings).Scan(
		&s.GymName,
		&s.Phone,
		&s.Instagram,
		&s.Address,
		&s.Website,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, nil
	}
	return s, err
}

type UpsertSettingsParams struct {
	GymName   string
	Phone     string
	Instagram string
	Address   string
	Website   string
	UpdatedAt time.Time
}

const upsertSettings = `INSERT INTO settings (id, gym_name, phone, instagram, address, website, updated_at)
VALUES (1, ?1, ?2, ?3, ?4, ?5, ?6)
ON CONFLICT(id) DO UPDATE SET
	gym_name = ?1, phone = ?2, instagram = ?3, address = ?4, website = ?5, updated_at = ?6`

func (q *Queries) UpsertSettings(ctx context.Context, arg UpsertSettingsParams) (model.Settings, error) {
	_, err := q.db.ExecContext(ctx, upsertSettings,
		arg.GymName,
		arg.Phone,
		arg.Instagram,
		arg.Address,
		arg.Website,
		arg.UpdatedAt,
	)
	if err != nil {
		return model.Settings{}, err
	}
	return q.GetSettings(ctx)
}
