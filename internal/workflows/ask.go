package workflows

import (
	"context"

	"github.com/danphilibin/relay/internal/relay"
)

// AskName greets the user by name
func AskName() *relay.Definition {
	return &relay.Definition{
		Title:       "Ask Name",
		Description: "Asks for your name and says hello.",
		Handler: func(ctx context.Context, run *relay.Run) error {
			err := run.Markdown(ctx, "Hello! I'd like to get to know you.")
			if err != nil {
				return err
			}
			name, err := run.Input(ctx, "What's your name?")
			if err != nil {
				return err
			}
			return run.Markdown(ctx, "Nice to meet you, "+name+"!")
		},
	}
}
