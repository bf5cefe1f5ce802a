// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures admin sessions backed by the SQLite sessions table.
package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Cookie names. The __Host- prefix requires Secure, so it is production only.
const (
	CookieNameDev  = "gymsite_session"
	CookieNameProd = "__Host-gymsite_session"
)

// Session lifetimes.
const (
	Lifetime    = 12 * time.Hour
	IdleTimeout = 2 * time.Hour
)

// Store wraps the SQLite store so its cleanup goroutine can be stopped.
type Store struct {
	*sqlite3store.SQLite3Store
}

// New creates a session manager using the sessions table in db. Call
// Store.StopCleanup on shutdown.
func New(db *sql.DB, isDev bool) (*scs.SessionManager, *Store) {
	store := &Store{sqlite3store.NewWithCleanupInterval(db, 30*time.Minute)}

	sm := scs.New()
	sm.Store = store
	sm.Lifetime = Lifetime
	sm.IdleTimeout = IdleTimeout
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev
	sm.Cookie.Name = CookieNameDev
	if !isDev {
		sm.Cookie.Name = CookieNameProd
	}

	return sm, store
}
