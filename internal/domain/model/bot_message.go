package model

import (
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"build-notifier/internal/domain"
)

const (
	MethodSendMessage = "sendMessage"

	// StatusInProgress marks a reply inside a conversation that is still open.
	StatusInProgress = "IN_PROGRESS"
	// StatusCompleted marks the last reply of a conversation (or a one-shot reply).
	StatusCompleted = "COMPLETED"
)

// MessageData is the Telegram facing part of a bus message.
type MessageData struct {
	ChatID      string                         `json:"chat_id"`
	Text        string                         `json:"text"`
	Method      string                         `json:"method"`
	ParseMode   string                         `json:"parse_mode,omitempty"`
	ReplyMarkup *tgbotapi.InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// BotMessage is the envelope exchanged with the command manager in both directions.
type BotMessage struct {
	Method        string       `json:"method"`
	Filename      string       `json:"filename,omitempty"`
	Data          *MessageData `json:"data"`
	CorrelationID string       `json:"kafkaMessageId"`
	Status        string       `json:"status,omitempty"`
}

// NewTextMessage builds an outbound sendMessage envelope.
func NewTextMessage(chatID, text, status, correlationID string) *BotMessage {
	return &BotMessage{
		Method:        MethodSendMessage,
		CorrelationID: correlationID,
		Status:        status,
		Data: &MessageData{
			ChatID: chatID,
			Text:   text,
			Method: MethodSendMessage,
		},
	}
}

// WithMarkdown switches the message to MarkdownV2 parsing.
func (m *BotMessage) WithMarkdown() *BotMessage {
	m.Data.ParseMode = tgbotapi.ModeMarkdownV2
	return m
}

// WithKeyboard attaches an inline keyboard.
func (m *BotMessage) WithKeyboard(k *tgbotapi.InlineKeyboardMarkup) *BotMessage {
	m.Data.ReplyMarkup = k
	return m
}

func (m *BotMessage) ChatID() string {
	if m == nil || m.Data == nil {
		return ""
	}
	return m.Data.ChatID
}

func (m *BotMessage) Text() string {
	if m == nil || m.Data == nil {
		return ""
	}
	return m.Data.Text
}

// Command returns the first whitespace separated token of the text.
func (m *BotMessage) Command() string {
	fields := strings.Fields(m.Text())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Arguments returns the text after the command token.
func (m *BotMessage) Arguments() string {
	text := strings.TrimSpace(m.Text())
	i := strings.IndexFunc(text, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' })
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

func (m *BotMessage) Completed() bool { return m.Status == StatusCompleted }

// ParseBotMessage decodes an inbound envelope. Payloads without a chat id are rejected.
func ParseBotMessage(b []byte) (*BotMessage, error) {
	var m BotMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode bot message: %w", err)
	}
	if m.Data == nil || m.Data.ChatID == "" {
		return nil, fmt.Errorf("bot message: %w", domain.ErrEmptyPayload)
	}
	return &m, nil
}
