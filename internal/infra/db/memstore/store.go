// Package memstore keeps subscriptions in process memory. It backs the
// "memory" database driver and the package tests.
package memstore

import (
	"context"
	"sync"

	"build-notifier/internal/domain/model"
)

type Store struct {
	mu   sync.RWMutex
	subs []model.Subscription
}

func New() *Store { return &Store{} }

func (s *Store) index(planName, chatID string) int {
	for i, sub := range s.subs {
		if sub.PlanName == planName && sub.ChatID == chatID {
			return i
		}
	}
	return -1
}

func (s *Store) Add(_ context.Context, planName, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(planName, chatID) >= 0 {
		return false, nil
	}
	s.subs = append(s.subs, model.Subscription{PlanName: planName, ChatID: chatID})
	return true, nil
}

func (s *Store) Delete(_ context.Context, planName, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(planName, chatID)
	if i < 0 {
		return false, nil
	}
	s.subs = append(s.subs[:i], s.subs[i+1:]...)
	return true, nil
}

func (s *Store) DeleteAll(_ context.Context, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.ChatID != chatID {
			kept = append(kept, sub)
		}
	}
	removed := len(kept) != len(s.subs)
	s.subs = kept
	return removed, nil
}

func (s *Store) ListPlans(_ context.Context, chatID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, sub := range s.subs {
		if sub.ChatID == chatID {
			out = append(out, sub.PlanName)
		}
	}
	return out, nil
}

func (s *Store) ListChats(_ context.Context, planName string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, sub := range s.subs {
		if sub.PlanName == planName {
			out = append(out, sub.ChatID)
		}
	}
	return out, nil
}
