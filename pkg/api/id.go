package api

import (
	"regexp"
	"strings"
)

type (
	// RunID identifies a single workflow run
	RunID string

	// MessageID identifies a message within a run. Request and received
	// messages of one interaction share the same MessageID
	MessageID string

	// Slug is the normalized, URL-safe name of a workflow
	Slug string
)

var (
	invalidSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lowercases a workflow name or title and collapses every run of
// characters outside [a-z0-9] into a single hyphen
func Slugify[T ~string](name T) Slug {
	lower := strings.ToLower(string(name))
	slug := invalidSlugChars.ReplaceAllString(lower, "-")
	return Slug(strings.Trim(slug, "-"))
}

// ToolName converts a slug into a name usable as an agent tool identifier
func (s Slug) ToolName() string {
	return strings.ReplaceAll(string(s), "-", "_")
}
