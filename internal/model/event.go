// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Event statuses. Only active events are shown on the public site.
const (
	EventStatusActive   = "active"
	EventStatusInactive = "inactive"
)

// Event is a scheduled gym event (class, workshop, competition).
// Date is YYYY-MM-DD and Time is HH:MM, both local to the gym.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsActive reports whether the event is publicly visible.
func (e *Event) IsActive() bool {
	return e.Status == EventStatusActive
}

// ToggledStatus returns the opposite status.
func (e *Event) ToggledStatus() string {
	if e.IsActive() {
		return EventStatusInactive
	}
	return EventStatusActive
}
