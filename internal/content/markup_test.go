// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown_SpecialCharacters(t *testing.T) {
	src := "Protein & carbs: eat 1 < 2 scoops\n\n```\nif a < b && c > d {}\n```\n\n> Strong body"
	out := string(Markdown(src))

	assert.Contains(t, out, "Protein &amp; carbs: eat 1 &lt; 2 scoops")
	assert.Contains(t, out, "<code>if a &lt; b &amp;&amp; c &gt; d {}")
	assert.Contains(t, out, "<blockquote>")
	assert.NotContains(t, out, "&amp;lt;")
	assert.NotContains(t, out, "&amp;amp;")
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown("## Recovery\n\n**Sleep** more.\n\n<script>alert(1)</script>"))

	assert.Contains(t, out, "<h2")
	assert.Contains(t, out, "<strong>Sleep</strong>")
	assert.NotContains(t, out, "<script>")
}

func TestMarkdown_Link(t *testing.T) {
	out := string(Markdown("[book](javascript:alert(1)) and [site](https://gym.example.com)"))

	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, `href="https://gym.example.com"`)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Short and sweet", Summary("<p>Short   and\nsweet</p>", 100))
	assert.Equal(t, "Warm up first", Summary("## Warm up **first**", 100))

	long := strings.Repeat("squat ", 100)
	got := Summary(long, 50)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 50)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.False(t, strings.Contains(got, "squat …"))
}

func TestSummary_NonPositiveLength(t *testing.T) {
	assert.Empty(t, Summary("Leg day", 0))
	assert.Empty(t, Summary("Leg day", -5))
}
