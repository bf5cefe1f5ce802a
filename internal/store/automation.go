// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/util"
)

const getAutomationSettings = `SELECT enabled, frequency_days, topics, target_category,
	last_run, next_run, updated_at
FROM automation_settings WHERE id = 1`

// GetAutomationSettings returns the singleton automation configuration.
// Defaults are returned when the row does not exist.
func (q *Queries) GetAutomationSettings(ctx context.Context) (model.AutomationSettings, error) {
	var (
		a       model.AutomationSettings
		topics  string
		lastRun sql.NullTime
		nextRun sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, getAutomationSettings).Scan(
		&a.Enabled,
		&a.FrequencyDays,
		&topics,
		&a.TargetCategory,
		&lastRun,
		&nextRun,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AutomationSettings{
			FrequencyDays: model.DefaultFrequencyDays,
			Topics:        []string{},
		}, nil
	}
	if err != nil {
		return model.AutomationSettings{}, err
	}

	if err := json.Unmarshal([]byte(topics), &a.Topics); err != nil {
		return model.AutomationSettings{}, fmt.Errorf("decoding topics: %w", err)
	}
	if a.Topics == nil {
		a.Topics = []string{}
	}
	a.LastRun = util.TimePtr(lastRun)
	a.NextRun = util.TimePtr(nextRun)
	return a, nil
}

type UpsertAutomationSettingsParams struct {
	Enabled        bool
	FrequencyDays  int
	Topics         []string
	TargetCategory string
	UpdatedAt      time.Time
}

const upsertAutomationSettings = `INSERT INTO automation_settings
	(id, enabled, frequency_days, topics, target_category, updated_at)
VALUES (1, ?1, ?2, ?3, ?4, ?5)
ON CONFLICT(id) DO UPDATE SET
	enabled = ?1, frequency_days = ?2, topics = ?3, target_category = ?4, updated_at = ?5`

// UpsertAutomationSettings saves the configuration. Run timestamps are kept.
func (q *Queries) UpsertAutomationSettings(ctx context.Context, arg UpsertAutomationSettingsParams) (model.AutomationSettings, error) {
	topics := arg.Topics
	if topics == nil {
		topics = []string{}
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return model.AutomationSettings{}, fmt.Errorf("encoding topics: %w", err)
	}

	if _, err := q.db.ExecContext(ctx, upsertAutomationSettings,
		arg.Enabled,
		arg.FrequencyDays,
		string(encoded),
		arg.TargetCategory,
		arg.UpdatedAt,
	); err != nil {
		return model.AutomationSettings{}, err
	}
	return q.GetAutomationSettings(ctx)
}

type MarkAutomationRunParams struct {
	LastRun time.Time
	NextRun time.Time
}

const markAutomationRun = `INSERT INTO automation_settings (id, last_run, next_run, updated_at)
VALUES (1, ?1, ?2, ?1)
ON CONFLICT(id) DO UPDATE SET last_run = ?1, next_run = ?2`

// MarkAutomationRun stamps the last and next generation times.
func (q *Queries) MarkAutomationRun(ctx context.Context, arg MarkAutomationRunParams) error {
	_, err := q.db.ExecContext(ctx, markAutomationRun, arg.LastRun, arg.NextRun)
	return err
}
