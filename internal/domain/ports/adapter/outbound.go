package adapter

import (
	"context"

	"build-notifier/internal/domain/model"
)

// MessageSender delivers a reply to the chat front-end.
type MessageSender interface {
	Send(ctx context.Context, msg *model.BotMessage) error
}

// Translator renders user facing texts. Markdown escapes its string arguments.
type Translator interface {
	T(key string, args ...interface{}) string
	Markdown(key string, args ...interface{}) string
	PlanNameText(err error) string
}
