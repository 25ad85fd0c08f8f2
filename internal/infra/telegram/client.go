package telegram

import (
	"fmt"
	"strconv"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the channel.Client interface using the
// gopkg.in/telebot.v3 library. Recipients are Telegram chat ids carried as
// strings by the rest of the system.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// Send delivers a text message to the given recipient.
func (tba *TelebotAdapter) Send(recipient string, text string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram recipient %q: %w", recipient, err)
	}
	_, err = tba.bot.Send(&telebot.User{ID: chatID}, text, &telebot.SendOptions{})
	return err
}
