// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot is the landing page.
	RouteRoot = "/"
	// RouteBlogPost is the public post page.
	RouteBlogPost = "/blog/{slug}"
	// RouteSitemap and RouteRobots are the crawler documents.
	RouteSitemap = "/sitemap.xml"
	RouteRobots  = "/robots.txt"

	// RouteParamID is the ID parameter pattern.
	RouteParamID = "/{id}"
	// RouteParamSlug is the slug parameter pattern.
	RouteParamSlug = "/{slug}"

	RoutePosts              = "/posts"
	RouteEvents             = "/events"
	RouteSettings           = "/settings"
	RouteAutomationSettings = "/automation/settings"
	RouteGenerate           = "/ai/generate"
	RouteUpload             = "/upload"
	RouteIngestion          = "/webhooks/ingestion"

	RouteAdmin         = "/admin"
	RouteLogin         = "/login"
	RouteLogout        = "/logout"
	RouteMe            = "/me"
	RouteSuffixPublish = "/publish"
	RouteSuffixToggle  = "/toggle"

	RouteHealth           = "/health"
	RouteHealthLive       = "/health/live"
	RouteHealthReady      = "/health/ready"
	RouteHealthAutomation = "/health/automation"

	RouteStatic  = "/static/*"
	RouteUploads = "/uploads/*"
)
