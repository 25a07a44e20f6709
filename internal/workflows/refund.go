package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danphilibin/relay/internal/durable"
	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/pkg/api"
)

type (
	orderItem struct {
		ID    string
		Name  string
		Price float64
	}

	order struct {
		ID       string
		Customer string
		Email    string
		Items    []orderItem
	}
)

var refundReasons = []api.SelectOption{
	{Value: "defective", Label: "Defective product"},
	{Value: "wrong_item", Label: "Wrong item received"},
	{Value: "changed_mind", Label: "Changed mind"},
	{Value: "duplicate", Label: "Duplicate order"},
	{Value: "other", Label: "Other"},
}

// ProcessRefund looks up an order, lets the user pick items and a reason,
// and asks for approval when the total crosses the threshold
func ProcessRefund() *relay.Definition {
	return &relay.Definition{
		Slug:  "refund",
		Title: "Process Refund",
		Description: "Look up an order, select items, and process a " +
			"refund with policy validation and approval gates.",
		Handler: processRefund,
	}
}

func processRefund(ctx context.Context, run *relay.Run) error {
	info, err := run.Form(ctx, "Enter order information", api.InputSchema{
		{Key: "orderId", FieldDef: api.FieldDef{
			Type: api.FieldText, Label: "Order ID",
		}},
	})
	if err != nil {
		return err
	}
	o := lookupOrder(text(info["orderId"]))

	selection, err := run.Form(ctx, "Select items to refund", itemSchema(o))
	if err != nil {
		return err
	}
	var items []orderItem
	total := 0.0
	for _, item := range o.Items {
		if boolean(selection[item.ID]) {
			items = append(items, item)
			total += item.Price
		}
	}
	if len(items) == 0 {
		return run.Markdown(ctx, "No items selected. Refund cancelled.")
	}

	why, err := run.Form(ctx, "Refund reason", api.InputSchema{
		{Key: "reason", FieldDef: api.FieldDef{
			Type: api.FieldSelect, Label: "Reason", Options: refundReasons,
		}},
		{Key: "reasonDetail", FieldDef: api.FieldDef{
			Type: api.FieldText, Label: "Additional details (optional)",
		}},
	})
	if err != nil {
		return err
	}
	if err := run.Markdown(ctx, refundSummary(items, total, why)); err != nil {
		return err
	}

	if total > ApprovalThreshold {
		approved, err := run.Confirm(ctx, fmt.Sprintf(
			"Refund requires approval: Amount (%s) exceeds $%d threshold.",
			dollars(total), ApprovalThreshold,
		))
		if err != nil {
			return err
		}
		if !approved {
			return run.Markdown(ctx, "**Refund rejected** during approval.")
		}
		if err := run.Markdown(ctx, "**Approval** received."); err != nil {
			return err
		}
	}

	refundID, err := durable.DoValue(ctx, run.Step(), "issue-refund-id",
		func(context.Context) (string, error) {
			return fmt.Sprintf("REF-%d", time.Now().UnixMilli()), nil
		},
	)
	if err != nil {
		return err
	}

	return run.Markdown(ctx, fmt.Sprintf(
		"## Refund Processed Successfully!\n\n"+
			"**Refund ID:** `%s`  \n"+
			"**Amount:** %s  \n"+
			"**Confirmation email** sent to %s",
		refundID, dollars(total), o.Email,
	))
}

func lookupOrder(id string) *order {
	return &order{
		ID:       id,
		Customer: "Jane Smith",
		Email:    "jane@example.com",
		Items: []orderItem{
			{ID: "item_1", Name: "Wireless Headphones", Price: 149.99},
			{ID: "item_2", Name: "Phone Case", Price: 29.99},
			{ID: "item_3", Name: "USB-C Cable", Price: 19.99},
		},
	}
}

func itemSchema(o *order) api.InputSchema {
	res := make(api.InputSchema, len(o.Items))
	for i, item := range o.Items {
		res[i] = api.InputField{
			Key: item.ID,
			FieldDef: api.FieldDef{
				Type:  api.FieldCheckbox,
				Label: fmt.Sprintf("%s (%s)", item.Name, dollars(item.Price)),
			},
		}
	}
	return res
}

func refundSummary(
	items []orderItem, total float64, why map[string]any,
) string {
	var b strings.Builder
	b.WriteString("## Refund Summary\n\n**Items:**\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item.Name)
	}
	fmt.Fprintf(&b, "\n**Total:** %s  \n**Reason:** %s",
		dollars(total), text(why["reason"]),
	)
	if detail := text(why["reasonDetail"]); detail != "" {
		fmt.Fprintf(&b, " (%s)", detail)
	}
	return b.String()
}
