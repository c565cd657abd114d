package session

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"build-notifier/internal/domain/model"
)

func (s *Session) startUnsubscribe(ctx context.Context) error {
	plans, err := s.store.ListPlans(ctx, s.chatID)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}
	if len(plans) == 0 {
		s.end(ctx, s.tr.Markdown("md.unsubscribe.none"))
		return nil
	}
	s.pagination = model.NewPaginationState(plans, s.cfg.PageSize)
	s.state = StateBrowsingPage
	s.renderPage(ctx)
	return nil
}

func (s *Session) handleUnsubscribe(ctx context.Context, text string) error {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case model.TokenPreviousPage, model.AliasPreviousPage:
		if s.pagination.Prev() {
			s.renderPage(ctx)
		}
		return nil
	case model.TokenNextPage, model.AliasNextPage:
		if s.pagination.Next() {
			s.renderPage(ctx)
		}
		return nil
	case model.TokenUnsubAll:
		removed, err := s.store.DeleteAll(ctx, s.chatID)
		if err != nil {
			return fmt.Errorf("delete all subscriptions: %w", err)
		}
		if removed {
			s.log.Info().Msg("unsubscribed from all plans")
			s.end(ctx, s.tr.Markdown("md.unsubscribe.all_removed"))
		} else {
			s.end(ctx, s.tr.Markdown("md.unsubscribe.none"))
		}
		return nil
	case model.TokenCloseSession:
		s.end(ctx, s.tr.Markdown("md.unsubscribe.finished"))
		return nil
	}

	key, ok := model.OptionKey(text)
	if !ok {
		s.log.Debug().Msg("ignoring unrecognised input")
		return nil
	}
	plan, ok := s.pagination.Resolve(key)
	if !ok {
		s.log.Debug().Str("option", key).Msg("ignoring stale option")
		return nil
	}
	return s.unsubscribe(ctx, plan)
}

func (s *Session) unsubscribe(ctx context.Context, plan string) error {
	removed, err := s.store.Delete(ctx, plan, s.chatID)
	if err != nil {
		return fmt.Errorf("delete subscription %q: %w", plan, err)
	}
	if !removed {
		s.reply(ctx, model.StatusInProgress, s.tr.Markdown("md.unsubscribe.not_found", plan), nil)
		return nil
	}
	s.log.Info().Str("plan", plan).Msg("unsubscribed")
	s.reply(ctx, model.StatusInProgress, s.tr.Markdown("md.unsubscribe.removed", plan), nil)

	plans, err := s.store.ListPlans(ctx, s.chatID)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}
	s.pagination.Reset(plans)
	if s.pagination.Empty() {
		s.end(ctx, s.tr.Markdown("md.unsubscribe.none_left"))
		return nil
	}
	s.renderPage(ctx)
	return nil
}

// renderPage sends the current page and rebuilds the option map.
func (s *Session) renderPage(ctx context.Context) {
	p := s.pagination
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, opt := range p.Render() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Plan, model.TokenOptionPrefix+opt.Key),
		))
	}
	if p.Total() > 1 {
		var nav []tgbotapi.InlineKeyboardButton
		if !p.IsFirst() {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(s.tr.T("button.previous"), model.TokenPreviousPage))
		}
		if !p.IsLast() {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(s.tr.T("button.next"), model.TokenNextPage))
		}
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(s.tr.T("button.unsub_all"), model.TokenUnsubAll),
		tgbotapi.NewInlineKeyboardButtonData(s.tr.T("button.finish"), model.TokenCloseSession),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	s.reply(ctx, model.StatusInProgress, s.tr.Markdown("md.unsubscribe.page", p.Current()+1, p.Total()), &kb)
}
