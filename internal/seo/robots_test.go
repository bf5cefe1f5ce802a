// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"strings"
	"testing"
)

func TestRobotsBuilderBuildDefault(t *testing.T) {
	got := NewRobotsBuilder(RobotsConfig{SiteURL: "https://gym.example/"}).Build()

	for _, want := range []string{
		"User-agent: *\n",
		"Disallow: /admin\n",
		"Disallow: /api\n",
		"Disallow: /upload\n",
		"Disallow: /webhooks\n",
		"Allow: /\n",
		"Sitemap: https://gym.example/sitemap.xml\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("robots.txt missing %q:\n%s", want, got)
		}
	}
}

func TestRobotsBuilderBuildDisallowAll(t *testing.T) {
	got := NewRobotsBuilder(RobotsConfig{SiteURL: "https://gym.example", DisallowAll: true}).Build()

	if got != "User-agent: *\nDisallow: /\n" {
		t.Errorf("got %q", got)
	}
}

func TestRobotsBuilderCustomPaths(t *testing.T) {
	got := NewRobotsBuilder(RobotsConfig{DisallowPaths: []string{"/private"}}).Build()

	if !strings.Contains(got, "Disallow: /private\n") {
		t.Errorf("custom path missing:\n%s", got)
	}
	if strings.Contains(got, "Sitemap:") {
		t.Errorf("sitemap line without site URL:\n%s", got)
	}
}

func TestRobotsBuilderDoesNotMutateDefaults(t *testing.T) {
	before := len(DefaultDisallowPaths)
	NewRobotsBuilder(RobotsConfig{DisallowPaths: []string{"/x"}}).Build()
	if len(DefaultDisallowPaths) != before {
		t.Errorf("DefaultDisallowPaths changed: %v", DefaultDisallowPaths)
	}
}

func TestGenerateRobots(t *testing.T) {
	if got := GenerateRobots("", true); got != "User-agent: *\nDisallow: /\n" {
		t.Errorf("got %q", got)
	}
}
