package repository

import "context"

// SubscriptionRepository is the port for (plan, chat) subscriptions.
// Every call is atomic on its own.
type SubscriptionRepository interface {
	// Add reports false when the pair already exists.
	Add(ctx context.Context, planName, chatID string) (bool, error)
	// Delete reports false when the pair did not exist.
	Delete(ctx context.Context, planName, chatID string) (bool, error)
	// DeleteAll reports false when the chat had no subscriptions.
	DeleteAll(ctx context.Context, chatID string) (bool, error)
	// ListPlans returns the chat's plans in subscription order.
	ListPlans(ctx context.Context, chatID string) ([]string, error)
	ListChats(ctx context.Context, planName string) ([]string, error)
}
