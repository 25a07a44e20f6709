package workflows

import (
	"fmt"
	"time"

	"github.com/danphilibin/relay/internal/relay"
)

// DefaultSubscribeDelay is how long the newsletter signup pretends to talk
// to a mailing list provider
const DefaultSubscribeDelay = 2 * time.Second

// All returns a fresh definition of every built-in workflow
func All() []*relay.Definition {
	return []*relay.Definition{
		AskName(),
		ApprovalTest(),
		ProcessRefund(),
		RichOutputDemo(),
		NewsletterSignup(DefaultSubscribeDelay),
	}
}

// Register adds every built-in workflow to reg
func Register(reg *relay.Registry) error {
	for _, def := range All() {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		var f float64
		_, _ = fmt.Sscanf(n, "%g", &f)
		return f
	default:
		return 0
	}
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

func text(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func dollars(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
