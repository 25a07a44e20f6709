package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danphilibin/relay/pkg/api"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want api.Slug
	}{
		{"ask-name", "ask-name"},
		{"Ask Name", "ask-name"},
		{"  Refund  Request!! ", "refund-request"},
		{"Rich_Output Demo", "rich-output-demo"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, api.Slugify(tt.in), tt.in)
	}
}

func TestToolName(t *testing.T) {
	assert.Equal(t,
		"newsletter_signup", api.Slug("newsletter-signup").ToolName(),
	)
}
