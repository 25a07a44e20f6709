package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/pkg/api"
)

// NewsletterSignup subscribes the user given in the upfront input. The
// subscription itself is simulated by a durable sleep of delay
func NewsletterSignup(delay time.Duration) *relay.Definition {
	return &relay.Definition{
		Title:       "Newsletter Signup",
		Description: "Collect user info and subscribe them to the newsletter.",
		Input: api.InputSchema{
			{Key: "name", FieldDef: api.FieldDef{
				Type: api.FieldText, Label: "Your name",
			}},
			{Key: "email", FieldDef: api.FieldDef{
				Type: api.FieldText, Label: "Email address",
			}},
			{Key: "newsletter", FieldDef: api.FieldDef{
				Type: api.FieldCheckbox, Label: "Subscribe to updates?",
			}},
		},
		Handler: func(ctx context.Context, run *relay.Run) error {
			data := run.Data()
			if boolean(data["newsletter"]) {
				err := run.Loading(ctx, "Subscribing to newsletter...",
					func(ctx context.Context, l *relay.Loader) error {
						err := run.Step().Sleep(ctx, "subscribe-delay", delay)
						if err != nil {
							return err
						}
						l.Complete("Subscribed to newsletter!")
						return nil
					},
				)
				if err != nil {
					return err
				}
			}
			return run.Text(ctx, fmt.Sprintf(
				"Thanks, %s! Check %s for next steps.",
				text(data["name"]), text(data["email"]),
			))
		},
	}
}
