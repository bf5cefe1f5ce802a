// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/gymsite/internal/imaging"
	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/store"
)

// UploadsURLPrefix is where stored files are served.
const UploadsURLPrefix = "/uploads"

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	URL    string `json:"url"`
	UUID   string `json:"uuid"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Upload handles POST /upload with a multipart "file" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.images == nil {
		h.fail(w, r, Unavailable("Uploads are not configured", nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, BadRequest(fmt.Sprintf("file must not exceed %d bytes", h.maxUpload)))
			return
		}
		h.fail(w, r, BadRequest("file is required"))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		h.fail(w, r, BadRequest("file could not be read"))
		return
	}
	if int64(len(data)) > h.maxUpload {
		h.fail(w, r, BadRequest(fmt.Sprintf("file must not exceed %d bytes", h.maxUpload)))
		return
	}
	if !imaging.IsImage(imaging.DetectMimeType(data)) {
		h.fail(w, r, BadRequest("file must be a JPEG, PNG, GIF or WebP image"))
		return
	}

	id := uuid.NewString()
	res, err := h.images.Process(data, id, header.Filename)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			h.fail(w, r, BadRequest("file must be a JPEG, PNG, GIF or WebP image"))
			return
		}
		h.fail(w, r, BadRequest("file is not a valid image"))
		return
	}

	url := path.Join(UploadsURLPrefix, id, res.Filename)
	upload, err := h.queries.CreateUpload(ctx, store.CreateUploadParams{
		UUID:      id,
		Filename:  res.Filename,
		MimeType:  res.MimeType,
		Size:      res.Size,
		Width:     res.Width,
		Height:    res.Height,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if rmErr := h.images.Remove(id); rmErr != nil {
			h.logger.Warn("failed to remove orphaned upload", "uuid", id, "error", rmErr)
		}
		h.fail(w, r, Internal(fmt.Errorf("recording upload: %w", err)))
		return
	}

	h.logger.Info("file uploaded",
		"uuid", upload.UUID,
		"filename", upload.Filename,
		"size", upload.Size,
		"user_id", middleware.GetUserID(r),
	)
	WriteCreated(w, UploadResponse{
		URL:    upload.URL,
		UUID:   upload.UUID,
		Width:  upload.Width,
		Height: upload.Height,
	})
}
