// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"time"
)

// Job names.
const (
	JobSiteRefresh = "site_refresh"
	JobPruneLogs   = "prune_event_logs"
)

// DefaultLogRetention is how long mirrored log records are kept.
const DefaultLogRetention = 30 * 24 * time.Hour

// Refresher rebuilds cached page data.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// LogPruner deletes log records older than a cutoff.
type LogPruner interface {
	DeleteLogEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AddSiteRefresh schedules periodic rebuilds of the public site snapshot.
func (s *Scheduler) AddSiteRefresh(schedule string, r Refresher) error {
	return s.Add(JobSiteRefresh, "Rebuild the public site snapshot", schedule, r.Refresh)
}

// AddLogPruning schedules a daily purge of log records older than retention.
func (s *Scheduler) AddLogPruning(p LogPruner, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultLogRetention
	}
	return s.Add(JobPruneLogs, "Delete old event log records", "@daily", func(ctx context.Context) error {
		n, err := p.DeleteLogEntriesBefore(ctx, time.Now().UTC().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Info("pruned event logs", "deleted", n, "retention", retention.String())
		}
		return nil
	})
}
