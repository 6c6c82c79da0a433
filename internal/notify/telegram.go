package notify

import (
	"context"
	"fmt"
	"net/http"
)

// TelegramSender posts alerts through the Telegram Bot API sendMessage
// endpoint.
type TelegramSender struct {
	token  string
	chatID string
	client *http.Client
}

func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: senderTimeout},
	}
}

func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	url := "https://api.telegram.org/bot" + t.token + "/sendMessage"
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n%s", title, message),
		"parse_mode": "Markdown",
	}
	if err := postJSON(ctx, t.client, url, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

func (t *TelegramSender) Name() string { return "telegram" }
