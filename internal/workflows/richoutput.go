package workflows

import (
	"context"

	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/pkg/api"
)

// RichOutputDemo emits one block of every output type
func RichOutputDemo() *relay.Definition {
	return &relay.Definition{
		Title:       "Rich Output Demo",
		Description: "Demonstrates all rich output block types.",
		Handler:     richOutputDemo,
	}
}

func richOutputDemo(ctx context.Context, run *relay.Run) error {
	steps := []func() error{
		func() error {
			return run.Markdown(ctx, "Rich output demo started.")
		},
		func() error {
			return run.Markdown(ctx, "# Rich Output Demo\n"+
				"Text output can be markdown or plain text.")
		},
		func() error {
			return run.Text(ctx, "This line is plain text.")
		},
		func() error {
			return run.Table(ctx, "Sample table",
				[]string{"name", "role", "status"},
				[][]string{
					{"Ada Lovelace", "Mathematician", "active"},
					{"Grace Hopper", "Computer Scientist", "active"},
					{"Alan Turing", "Researcher", "archived"},
				},
			)
		},
		func() error {
			return run.Code(ctx, "go build ./...\ngo test ./...", "bash")
		},
		func() error {
			return run.Image(ctx,
				"https://images.unsplash.com/photo-1518770660439-"+
					"4636190af475?auto=format&fit=crop&w=1200&q=80",
				"Laptop and code on a desk",
			)
		},
		func() error {
			return run.Link(ctx, "https://go.dev/doc/",
				"Go Documentation",
				"Reference docs for the Go language and tools.",
			)
		},
		func() error {
			return run.Buttons(ctx,
				api.OutputButton{
					Label:  "Open Go",
					URL:    "https://go.dev",
					Intent: api.IntentPrimary,
				},
				api.OutputButton{
					Label:  "View GitHub",
					URL:    "https://github.com/golang/go",
					Intent: api.IntentSecondary,
				},
				api.OutputButton{
					Label:  "Danger Example",
					Intent: api.IntentDanger,
				},
			)
		},
		func() error {
			return run.Markdown(ctx, "Rich output demo complete.")
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
