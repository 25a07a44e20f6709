package workflows

import (
	"context"
	"fmt"

	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/pkg/api"
)

// ApprovalThreshold is the refund amount above which a confirmation is
// required
const ApprovalThreshold = 100

// ApprovalTest asks for an amount and requires approval above the
// threshold
func ApprovalTest() *relay.Definition {
	return &relay.Definition{
		Title:       "Approval Test",
		Description: "Processes a refund, asking for approval over $100.",
		Handler:     approvalTest,
	}
}

func approvalTest(ctx context.Context, run *relay.Run) error {
	value, err := run.Form(ctx, "Enter refund amount:", api.InputSchema{
		{Key: "amount", FieldDef: api.FieldDef{
			Type: api.FieldNumber, Label: "Amount ($)",
		}},
	})
	if err != nil {
		return err
	}
	amount := number(value["amount"])

	msg := fmt.Sprintf("Processing refund for $%v...", amount)
	if err := run.Markdown(ctx, msg); err != nil {
		return err
	}

	if amount > ApprovalThreshold {
		approved, err := run.Confirm(ctx, fmt.Sprintf(
			"Refund of $%v exceeds $%d threshold. Approval required.",
			amount, ApprovalThreshold,
		))
		if err != nil {
			return err
		}
		if !approved {
			return run.Markdown(ctx, "Refund rejected.")
		}
		if err := run.Markdown(ctx, "Refund approved!"); err != nil {
			return err
		}
	}

	return run.Markdown(ctx,
		fmt.Sprintf("Refund of $%v processed successfully.", amount),
	)
}
