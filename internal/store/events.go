// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/gymsite/internal/model"
)

const eventColumns = `id, title, date, time, location, description, category,
	status, image, created_at, updated_at`

func scanEvent(row rowScanner) (model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Date,
		&e.Time,
		&e.Location,
		&e.Description,
		&e.Category,
		&e.Status,
		&e.Image,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}

const listEvents = `SELECT ` + eventColumns + ` FROM events
WHERE (?1 = 0 OR status = 'active')
ORDER BY date ASC, time ASC, id ASC`

// ListEvents returns events in calendar order. activeOnly hides inactive events.
func (q *Queries) ListEvents(ctx context.Context, activeOnly bool) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx, listEvents, activeOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
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

const getEventByID = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

func (q *Queries) GetEventByID(ctx context.Context, id int64) (model.Event, error) {
	return scanEvent(q.db.QueryRowContext(ctx, getEventByID, id))
}

type CreateEventParams struct {
	Title       string
	Date        string
	Time        string
	Location    string
	Description string
	Category    string
	Status      string
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const createEvent = `INSERT INTO events (
	title, date, time, location, description, category, status, image, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + eventColumns

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (model.Event, error) {
	row := q.db.QueryRowContext(ctx, createEvent,
		arg.Title,
		arg.Date,
		arg.Time,
		arg.Location,
		arg.Description,
		arg.Category,
		arg.Status,
		arg.Image,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanEvent(row)
}

type UpdateEventParams struct {
	ID          int64
	Title       string
	Date        string
	Time        string
	Location    string
	Description string
	Category    string
	Status      string
	Image       string
	UpdatedAt   time.Time
}

const updateEvent = `UPDATE events SET
	title = ?, date = ?, time = ?, location = ?, description = ?,
	category = ?, status = ?, image = ?, updated_at = ?
WHERE id = ?
RETURNING ` + eventColumns

func (q *Queries) UpdateEvent(ctx context.Context, arg UpdateEventParams) (model.Event, error) {
	row := q.db.QueryRowContext(ctx, updateEvent,
		arg.Title,
		arg.Date,
		arg.Time,
		arg.Location,
		arg.Description,
		arg.Category,
		arg.Status,
		arg.Image,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanEvent(row)
}

type SetEventStatusParams struct {
	ID        int64
	Status    string
	UpdatedAt time.Time
}

const setEventStatus = `UPDATE events SET status = ?, updated_at = ? WHERE id = ?
RETURNING ` + eventColumns

func (q *Queries) SetEventStatus(ctx context.Context, arg SetEventStatusParams) (model.Event, error) {
	return scanEvent(q.db.QueryRowContext(ctx, setEventStatus, arg.Status, arg.UpdatedAt, arg.ID))
}

const deleteEvent = `DELETE FROM events WHERE id = ?`

func (q *Queries) DeleteEvent(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteEvent, id)
	return err
}
