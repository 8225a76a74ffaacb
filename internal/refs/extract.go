// Package refs extracts cross-record references from rich-text fields and
// canonicalizes them to one stable identifier form.
package refs

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/pagerelay/pagerelay/internal/workspace"
)

// DocumentReference is a normalized record identifier in 8-4-4-4-12 form.
type DocumentReference struct {
	ID string
}

var (
	// Matches workspace share URLs embedded in free text.
	urlPattern = regexp.MustCompile(`(?i)https://(?:www\.)?notion\.so/[^\s)"'<>]+`)

	// Matches a raw 32-hex identifier or its canonical hyphenated form.
	idPattern = regexp.MustCompile(`(?i)([a-f0-9]{32})|([a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12})`)
)

// Canonicalize normalizes an identifier found in either hex or hyphenated
// form to lower-case 8-4-4-4-12. Canonical input maps to itself.
func Canonicalize(raw string) (string, bool) {
	id, err := uuid.Parse(strings.ToLower(strings.ReplaceAll(raw, "-", "")))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// FromURL pulls a page identifier out of a workspace URL.
func FromURL(url string) (string, bool) {
	match := idPattern.FindString(url)
	if match == "" {
		return "", false
	}
	return Canonicalize(match)
}

// Extract walks a rich-text sequence and returns every referenced page, in
// order of first appearance, de-duplicated. Structured mentions resolve
// directly; plain text, inline links and hrefs are scanned for embedded URLs.
func Extract(runs []workspace.RichText) []DocumentReference {
	var out []DocumentReference
	seen := make(map[string]bool)

	add := func(raw string) {
		id, ok := Canonicalize(raw)
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, DocumentReference{ID: id})
	}

	for _, run := range runs {
		if run.Mention != nil && run.Mention.Page != nil {
			add(run.Mention.Page.ID)
			continue
		}
		for _, url := range candidateURLs(run) {
			if id, ok := FromURL(url); ok && !seen[id] {
				seen[id] = true
				out = append(out, DocumentReference{ID: id})
			}
		}
	}
	return out
}

// ExtractFromText scans plain text for workspace URLs.
func ExtractFromText(text string) []DocumentReference {
	var out []DocumentReference
	seen := make(map[string]bool)
	for _, url := range urlPattern.FindAllString(text, -1) {
		if id, ok := FromURL(url); ok && !seen[id] {
			seen[id] = true
			out = append(out, DocumentReference{ID: id})
		}
	}
	return out
}

func candidateURLs(run workspace.RichText) []string {
	var urls []string
	if run.Href != "" {
		urls = append(urls, run.Href)
	}
	if run.Text != nil {
		if run.Text.Link != nil && run.Text.Link.URL != "" {
			urls = append(urls, run.Text.Link.URL)
		}
		urls = append(urls, urlPattern.FindAllString(run.Text.Content, -1)...)
	}
	if run.PlainText != "" && run.Text == nil {
		urls = append(urls, urlPattern.FindAllString(run.PlainText, -1)...)
	}
	return urls
}
