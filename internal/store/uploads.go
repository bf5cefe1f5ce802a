// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/gymsite/internal/model"
)

const uploadColumns = `id, uuid, filename, mime_type, size, width, height, url, created_at`

func scanUpload(row rowScanner) (model.Upload, error) {
	var u model.Upload
	err := row.Scan(
		&u.ID,
		&u.UUID,
		&u.Filename,
		&u.MimeType,
		&u.Size,
		&u.Width,
		&u.Height,
		&u.URL,
		&u.CreatedAt,
	)
	return u, err
}

type CreateUploadParams struct {
	UUID      string
	Filename  string
	MimeType  string
	Size      int64
	Width     int
	Height    int
	URL       string
	CreatedAt time.Time
}

const createUpload = `INSERT INTO uploads (uuid, filename, mime_type, size, width, height, url, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + uploadColumns

func (q *Queries) CreateUpload(ctx context.Context, arg CreateUploadParams) (model.Upload, error) {
	row := q.db.QueryRowContext(ctx, createUpload,
		arg.UUID,
		arg.Filename,
		arg.MimeType,
		arg.Size,
		arg.Width,
		arg.Height,
		arg.URL,
		arg.CreatedAt,
	)
	return scanUpload(row)
}

const getUploadByUUID = `SELECT ` + uploadColumns + ` FROM uploads WHERE uuid = ?`

func (q *Queries) GetUploadByUUID(ctx context.Context, uuid string) (model.Upload, error) {
	return scanUpload(q.db.QueryRowContext(ctx, getUploadByUUID, uuid))
}
