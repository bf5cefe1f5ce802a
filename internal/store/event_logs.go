// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/gymsite/internal/model"
)

type CreateLogEntryParams struct {
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string
	CreatedAt time.Time
}

const createLogEntry = `INSERT INTO event_logs (level, category, message, user_id, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateLogEntry(ctx context.Context, arg CreateLogEntryParams) error {
	_, err := q.db.ExecContext(ctx, createLogEntry,
		arg.Level,
		arg.Category,
		arg.Message,
		arg.UserID,
		arg.Metadata,
		arg.CreatedAt,
	)
	return err
}

const listLogEntries = `SELECT id, level, category, message, user_id, metadata, created_at
FROM event_logs
WHERE (?1 = '' OR category = ?1)
ORDER BY created_at DESC, id DESC
LIMIT ?2`

// ListLogEntries returns the most recent entries, optionally for one category.
func (q *Queries) ListLogEntries(ctx context.Context, category string, limit int64) ([]model.LogEntry, error) {
	rows, err := q.db.QueryContext(ctx, listLogEntries, category, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []model.LogEntry{}
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.UserID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteLogEntriesBefore = `DELETE FROM event_logs WHERE created_at < ?`

// DeleteLogEntriesBefore prunes entries older than cutoff and returns how many were removed.
func (q *Queries) DeleteLogEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteLogEntriesBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
