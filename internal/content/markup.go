// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content renders stored post bodies for the public site. Bodies are
// stored as sent; only rendered HTML is sanitised.
package content

import (
	"bytes"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ugcPolicy allows safe formatting tags and strips scripts, event handlers
// and other active content.
var ugcPolicy = bluemonday.UGCPolicy()

// stripPolicy removes all markup.
var stripPolicy = bluemonday.StrictPolicy()

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders src to sanitised HTML. Raw HTML in src is dropped by
// goldmark; the output is sanitised again before it is trusted.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src)) //nolint:gosec // escaped
	}
	return template.HTML(ugcPolicy.Sanitize(buf.String())) //nolint:gosec // sanitised
}

// Summary returns the plain text of s, whitespace-collapsed and cut at a
// word boundary to at most n runes. An ellipsis marks a cut. n < 1 yields "".
func Summary(s string, n int) string {
	if n < 1 {
		return ""
	}
	text := strings.Join(strings.Fields(stripMarkdown(stripPolicy.Sanitize(s))), " ")
	text = unescape(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:n-1])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

var markdownSyntax = strings.NewReplacer("#", "", "*", "", "_", "", "`", "", ">", "")

func stripMarkdown(s string) string {
	return markdownSyntax.Replace(s)
}

var entities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&#34;", `"`, "&#39;", "'", "&quot;", `"`)

func unescape(s string) string {
	return entities.Replace(s)
}
