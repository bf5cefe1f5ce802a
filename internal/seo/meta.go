// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package seo

import (
	"encoding/json"
	"html/template"
	"strings"
	"time"

	"github.com/olegiv/gymsite/internal/content"
	"github.com/olegiv/gymsite/internal/model"
)

// descriptionLength is the cut used for meta descriptions.
const descriptionLength = 160

// Meta holds all SEO meta tag data for a page.
type Meta struct {
	Title         string // Page title (for <title> tag)
	Description   string // Meta description
	Canonical     string // Canonical URL
	OGTitle       string // Open Graph title
	OGDescription string // Open Graph description
	OGImage       string // Open Graph image URL (absolute)
	OGType        string // Open Graph type (website, article)
	OGSiteName    string // Open Graph site name
	OGURL         string // Open Graph URL
	Robots        string // Robots directive
	TwitterCard   string // Twitter card type
}

// Site carries the site-wide values meta tags fall back to.
type Site struct {
	Name         string
	URL          string // public base URL, no trailing slash needed
	Description  string
	DefaultImage string
	NoIndex      bool
}

// SiteFromSettings derives Site from the gym settings record.
func SiteFromSettings(s model.Settings, baseURL string, noIndex bool) *Site {
	desc := s.DisplayName()
	if s.Address != "" {
		desc += " · " + s.Address
	}
	return &Site{
		Name:         s.DisplayName(),
		URL:          strings.TrimSuffix(baseURL, "/"),
		Description:  desc,
		DefaultImage: "/static/placeholder.svg",
		NoIndex:      noIndex,
	}
}

// HomeMeta builds the landing page meta tags.
func HomeMeta(site *Site) *Meta {
	return &Meta{
		Title:         site.Name,
		OGTitle:       site.Name,
		Description:   site.Description,
		OGDescription: site.Description,
		OGType:        "website",
		OGSiteName:    site.Name,
		OGImage:       makeAbsoluteURL(site.DefaultImage, site.URL),
		Canonical:     site.URL + "/",
		OGURL:         site.URL + "/",
		Robots:        robotsDirective(site.NoIndex),
		TwitterCard:   "summary_large_image",
	}
}

// PostMeta builds the meta tags of a blog post page. The description is
// the excerpt, or the start of the body when there is none.
func PostMeta(post *model.Post, site *Site) *Meta {
	desc := strings.TrimSpace(post.Excerpt)
	if desc == "" {
		desc = content.Summary(post.Content, descriptionLength)
	}

	image := post.Image
	if image == "" {
		image = site.DefaultImage
	}

	url := postURL(post, site)
	return &Meta{
		Title:         post.Title + " | " + site.Name,
		OGTitle:       post.Title,
		Description:   desc,
		OGDescription: desc,
		OGType:        "article",
		OGSiteName:    site.Name,
		OGImage:       makeAbsoluteURL(image, site.URL),
		Canonical:     url,
		OGURL:         url,
		Robots:        robotsDirective(site.NoIndex),
		TwitterCard:   "summary_large_image",
	}
}

func robotsDirective(noIndex bool) string {
	if noIndex {
		return "noindex,nofollow"
	}
	return "index,follow"
}

func postURL(post *model.Post, site *Site) string {
	return site.URL + "/blog/" + post.Slug
}

// ArticleSchema represents JSON-LD Article structured data.
type ArticleSchema struct {
	Context          string     `json:"@context"`
	Type             string     `json:"@type"`
	Headline         string     `json:"headline"`
	Description      string     `json:"description,omitempty"`
	Image            string     `json:"image,omitempty"`
	ArticleSection   string     `json:"articleSection,omitempty"`
	DatePublished    string     `json:"datePublished,omitempty"`
	DateModified     string     `json:"dateModified,omitempty"`
	Publisher        *OrgSchema `json:"publisher,omitempty"`
	MainEntityOfPage string     `json:"mainEntityOfPage,omitempty"`
}

// OrgSchema represents JSON-LD Organization structured data.
type OrgSchema struct {
	Type string `json:"@type"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// GymSchema is the JSON-LD ExerciseGym record of the landing page.
type GymSchema struct {
	Context   string   `json:"@context"`
	Type      string   `json:"@type"`
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	Telephone string   `json:"telephone,omitempty"`
	Address   string   `json:"address,omitempty"`
	Image     string   `json:"image,omitempty"`
	SameAs    []string `json:"sameAs,omitempty"`
}

// BuildArticleSchema creates JSON-LD Article structured data for a post.
func BuildArticleSchema(post *model.Post, site *Site) template.JS {
	if post == nil {
		return ""
	}

	article := ArticleSchema{
		Context:          "https://schema.org",
		Type:             "Article",
		Headline:         post.Title,
		Description:      strings.TrimSpace(post.Excerpt),
		Image:            makeAbsoluteURL(post.Image, site.URL),
		ArticleSection:   post.Category,
		MainEntityOfPage: postURL(post, site),
		Publisher: &OrgSchema{
			Type: "Organization",
			Name: site.Name,
			URL:  site.URL + "/",
		},
	}
	if post.PublishedAt != nil {
		article.DatePublished = post.PublishedAt.UTC().Format(time.RFC3339)
	}
	if !post.UpdatedAt.IsZero() {
		article.DateModified = post.UpdatedAt.UTC().Format(time.RFC3339)
	}

	return marshalJSONLD(article)
}

// BuildGymSchema creates the landing page JSON-LD from the gym settings.
// instagramURL is the resolved profile link, empty when none is set.
func BuildGymSchema(s model.Settings, site *Site, instagramURL string) template.JS {
	gym := GymSchema{
		Context:   "https://schema.org",
		Type:      "ExerciseGym",
		Name:      s.DisplayName(),
		URL:       site.URL + "/",
		Telephone: s.Phone,
		Address:   s.Address,
		Image:     makeAbsoluteURL(site.DefaultImage, site.URL),
	}
	if instagramURL != "" {
		gym.SameAs = append(gym.SameAs, instagramURL)
	}
	if s.Website != "" {
		gym.SameAs = append(gym.SameAs, s.Website)
	}
	return marshalJSONLD(gym)
}

// marshalJSONLD marshals structured data to JSON-LD script tag content.
func marshalJSONLD(v any) template.JS {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return template.JS(data)
}

// makeAbsoluteURL ensures a URL is absolute by prepending site URL if needed.
func makeAbsoluteURL(url, siteURL string) string {
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	siteURL = strings.TrimSuffix(siteURL, "/")
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return siteURL + url
}
