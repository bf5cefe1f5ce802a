// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Log levels stored in event_logs.
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// Log categories.
const (
	LogCategoryAuth       = "auth"
	LogCategoryContent    = "content"
	LogCategoryIngestion  = "ingestion"
	LogCategoryAutomation = "automation"
	LogCategorySystem     = "system"
)

// LogEntry is a persisted warning or error record.
type LogEntry struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string // JSON
	CreatedAt time.Time
}
