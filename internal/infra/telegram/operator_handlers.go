package telegram

import (
	"context"
	"fmt"
	"strings"

	"filing_compliance_bot/internal/app"
	"filing_compliance_bot/internal/domain/review"

	"gopkg.in/telebot.v3"
)

// RegisterOperatorHandlers wires the operator-only bot commands: listing
// the manual review queue and re-queuing failed transactions. Commands from
// any other chat are refused.
func RegisterOperatorHandlers(
	ctx context.Context,
	b *telebot.Bot,
	fulfillments *app.FulfillmentService,
	reviews review.Repository,
	operatorChatID int64,
) {
	b.Handle("/reviews", func(c telebot.Context) error {
		if c.Sender().ID != operatorChatID {
			return c.Send("This command is restricted to the operator.")
		}

		open, err := reviews.ListOpen(ctx)
		if err != nil {
			return c.Send(fmt.Sprintf("Failed to list reviews: %v", err))
		}
		if len(open) == 0 {
			return c.Send("Review queue is empty.")
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d open reviews:\n", len(open))
		for _, rev := range open {
			fmt.Fprintf(&b, "#%d [%s] tx %s: %s\n", rev.ID, rev.Kind, rev.TransactionID, rev.Detail)
		}
		return c.Send(b.String())
	})

	b.Handle("/retry", func(c telebot.Context) error {
		if c.Sender().ID != operatorChatID {
			return c.Send("This command is restricted to the operator.")
		}

		args := strings.Fields(c.Message().Payload)
		if len(args) != 1 {
			return c.Send("Usage: /retry <transaction id>")
		}
		transactionID := args[0]

		if err := fulfillments.Retry(ctx, transactionID); err != nil {
			return c.Send(fmt.Sprintf("Retry failed: %v", err))
		}
		return c.Send(fmt.Sprintf("Transaction %s re-queued for processing.", transactionID))
	})
}
