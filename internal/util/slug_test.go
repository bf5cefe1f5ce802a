// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"errors"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple title", "Hello World", "hello-world"},
		{"with special characters", "Leg Day, Done Right!", "leg-day-done-right"},
		{"with numbers", "Top 10 Stretches", "top-10-stretches"},
		{"with accents", "Nutrición para atletas", "nutricion-para-atletas"},
		{"with multiple spaces", "Hello   World", "hello-world"},
		{"with hyphens", "Warm - Up", "warm-up"},
		{"leading and trailing spaces", "  Hello World  ", "hello-world"},
		{"all special characters", "!@#$%^&*()", ""},
		{"german sharp s", "Straße", "strasse"},
		{"cyrillic", "Спорт", "sport"},
		{"empty string", "", ""},
		{"mixed case", "HeLLo WoRLd", "hello-world"},
		{"tabs and newlines", "Core\tand\nCardio", "core-and-cardio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Slugify(tt.input)
			if result != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSlugify_TruncatesLongTitles(t *testing.T) {
	got := Slugify(strings.Repeat("strength ", 30))
	if len(got) > MaxSlugLength {
		t.Errorf("len = %d, want <= %d", len(got), MaxSlugLength)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slug %q ends with hyphen", got)
	}
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"hiit-basics": true, "hiit-basics-2": true}
	exists := func(s string) (bool, error) { return taken[s], nil }

	got, err := UniqueSlug("HIIT Basics", "post", exists)
	if err != nil {
		t.Fatalf("UniqueSlug: %v", err)
	}
	if got != "hiit-basics-3" {
		t.Errorf("got %q, want %q", got, "hiit-basics-3")
	}

	got, err = UniqueSlug("Fresh Title", "post", exists)
	if err != nil {
		t.Fatalf("UniqueSlug: %v", err)
	}
	if got != "fresh-title" {
		t.Errorf("got %q, want %q", got, "fresh-title")
	}
}

func TestUniqueSlug_Fallback(t *testing.T) {
	got, err := UniqueSlug("!!!", "post", func(string) (bool, error) { return false, nil })
	if err != nil {
		t.Fatalf("UniqueSlug: %v", err)
	}
	if got != "post" {
		t.Errorf("got %q, want %q", got, "post")
	}
}

func TestUniqueSlug_LookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := UniqueSlug("x", "post", func(string) (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"hello-world", true},
		{"page-123", true},
		{"123", true},
		{"", false},
		{"Hello-World", false},
		{"hello world", false},
		{"hello!world", false},
		{"-hello", false},
		{"hello-", false},
		{"hello--world", false},
	}

	for _, tt := range tests {
		if got := IsValidSlug(tt.input); got != tt.expected {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
