package model

import (
	"strings"

	"build-notifier/internal/domain"
)

// Subscription links a build plan to a chat. (PlanName, ChatID) is unique.
type Subscription struct {
	PlanName string
	ChatID   string
}

func NewSubscription(planName, chatID string) (*Subscription, error) {
	if strings.TrimSpace(planName) == "" || strings.TrimSpace(chatID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{PlanName: planName, ChatID: chatID}, nil
}
