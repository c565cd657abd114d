package session

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/model"
)

func (s *Session) startSubscribe(ctx context.Context) error {
	s.state = StateAwaitingInput
	s.reply(ctx, model.StatusInProgress, s.tr.Markdown("md.subscribe.prompt"), s.cancelKeyboard())
	return nil
}

func (s *Session) handleSubscribe(ctx context.Context, text string) error {
	if strings.EqualFold(text, model.TokenCloseSession) {
		s.end(ctx, s.tr.Markdown("md.subscribe.finished"))
		return nil
	}

	if err := domain.ValidatePlanName(text); err != nil {
		s.log.Debug().Err(err).Msg("rejected plan name")
		s.reply(ctx, model.StatusInProgress, s.tr.Markdown("md.subscribe.invalid", s.tr.PlanNameText(err)), s.cancelKeyboard())
		return nil
	}

	plan := domain.NormalizePlanName(text)
	added, err := s.store.Add(ctx, plan, s.chatID)
	if err != nil {
		return fmt.Errorf("add subscription %q: %w", plan, err)
	}
	if added {
		s.log.Info().Str("plan", plan).Msg("subscribed")
		s.end(ctx, s.tr.Markdown("md.subscribe.added", plan))
		return nil
	}
	s.end(ctx, s.tr.Markdown("md.subscribe.already", plan))
	return nil
}

func (s *Session) cancelKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(s.tr.T("button.cancel"), model.TokenCloseSession)),
	)
	return &kb
}
