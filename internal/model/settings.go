// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Settings is the singleton gym identity record read by the site header and footer.
type Settings struct {
	GymName   string    `json:"gymName"`
	Phone     string    `json:"phone"`
	Instagram string    `json:"instagram"`
	Address   string    `json:"address"`
	Website   string    `json:"website"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultGymName is shown until settings are saved.
const DefaultGymName = "Our Gym"

// DisplayName returns the gym name or DefaultGymName when unset.
func (s Settings) DisplayName() string {
	if s.GymName == "" {
		return DefaultGymName
	}
	return s.GymName
}

// AutomationSettings configures the external post generator. It is only
// configuration: execution happens in the automation tool, which reads
// these values. LastRun and NextRun are stamped when a generation is triggered.
type AutomationSettings struct {
	Enabled        bool       `json:"enabled"`
	FrequencyDays  int        `json:"frequencyDays"`
	Topics         []string   `json:"topics"`
	TargetCategory string     `json:"targetCategory"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
	NextRun        *time.Time `json:"nextRun,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// DefaultFrequencyDays is used when no frequency has been configured.
const DefaultFrequencyDays = 7

// NextRunAfter returns the next run time given a run at t.
func (a AutomationSettings) NextRunAfter(t time.Time) time.Time {
	days := a.FrequencyDays
	if days <= 0 {
		days = DefaultFrequencyDays
	}
	return t.AddDate(0, 0, days)
}
