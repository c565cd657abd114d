package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/domain/ports/repository"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase serves the one-shot subscription commands.
type SubscriptionUseCase interface {
	// Handle runs the command in msg and replies to the chat.
	Handle(ctx context.Context, msg *model.BotMessage) error
	Subscribe(ctx context.Context, chatID, args string) (string, error)
	Unsubscribe(ctx context.Context, chatID, args string) (string, error)
	List(ctx context.Context, chatID string) (string, error)
}

type subscriptionUC struct {
	subs   repository.SubscriptionRepository
	sender adapter.MessageSender
	tr     adapter.Translator
	log    *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, sender adapter.MessageSender, tr adapter.Translator, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{subs: subs, sender: sender, tr: tr, log: logger}
}

func (u *subscriptionUC) Handle(ctx context.Context, msg *model.BotMessage) error {
	chatID := msg.ChatID()
	var (
		text string
		err  error
	)
	switch cmd := model.NormalizeCommand(msg.Command()); cmd {
	case model.CommandSubscribe:
		text, err = u.Subscribe(ctx, chatID, msg.Arguments())
	case model.CommandUnsubscribe:
		text, err = u.Unsubscribe(ctx, chatID, msg.Arguments())
	case model.CommandListSubscriptions:
		text, err = u.List(ctx, chatID)
	default:
		return fmt.Errorf("command %q: %w", cmd, domain.ErrInvalidArgument)
	}
	if err != nil {
		u.log.Error().Err(err).Str("chat_id", chatID).Str("command", msg.Command()).Msg("subscription command failed")
		text = u.tr.Markdown("md.session.failed")
	}

	reply := model.NewTextMessage(chatID, text, model.StatusCompleted, msg.CorrelationID).WithMarkdown()
	if sendErr := u.sender.Send(ctx, reply); sendErr != nil {
		return fmt.Errorf("send reply: %w", sendErr)
	}
	return err
}

func (u *subscriptionUC) Subscribe(ctx context.Context, chatID, args string) (string, error) {
	names := splitPlans(args)
	if len(names) == 0 {
		return u.tr.Markdown("md.command.sub.help"), nil
	}

	var added, existing, invalid []string
	for _, name := range names {
		if err := domain.ValidatePlanName(name); err != nil {
			u.log.Debug().Err(err).Str("chat_id", chatID).Msg("rejected plan name")
			invalid = append(invalid, name)
			continue
		}
		plan := domain.NormalizePlanName(name)
		ok, err := u.subs.Add(ctx, plan, chatID)
		if err != nil {
			return "", fmt.Errorf("add %q: %w", plan, err)
		}
		if ok {
			added = append(added, plan)
		} else {
			existing = append(existing, plan)
		}
	}
	u.log.Info().Str("chat_id", chatID).Int("added", len(added)).Int("existing", len(existing)).Int("invalid", len(invalid)).Msg("subscribe command")

	return u.groups(
		group{"md.command.sub.added", added},
		group{"md.command.sub.already", existing},
		group{"md.command.sub.invalid", invalid},
	), nil
}

func (u *subscriptionUC) Unsubscribe(ctx context.Context, chatID, args string) (string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return u.tr.Markdown("md.command.unsub.help"), nil
	}
	if strings.EqualFold(args, "all") {
		ok, err := u.subs.DeleteAll(ctx, chatID)
		if err != nil {
			return "", fmt.Errorf("delete all: %w", err)
		}
		if !ok {
			return u.tr.Markdown("md.unsubscribe.none"), nil
		}
		return u.tr.Markdown("md.unsubscribe.all_removed"), nil
	}

	names := splitPlans(args)
	if len(names) == 0 {
		return u.tr.Markdown("md.command.unsub.help"), nil
	}
	var removed, missing, invalid []string
	for _, name := range names {
		if err := domain.ValidatePlanName(name); err != nil {
			invalid = append(invalid, name)
			continue
		}
		plan := domain.NormalizePlanName(name)
		ok, err := u.subs.Delete(ctx, plan, chatID)
		if err != nil {
			return "", fmt.Errorf("delete %q: %w", plan, err)
		}
		if ok {
			removed = append(removed, plan)
		} else {
			missing = append(missing, plan)
		}
	}
	return u.groups(
		group{"md.command.unsub.removed", removed},
		group{"md.command.unsub.missing", missing},
		group{"md.command.unsub.invalid", invalid},
	), nil
}

func (u *subscriptionUC) List(ctx context.Context, chatID string) (string, error) {
	plans, err := u.subs.ListPlans(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("list plans: %w", err)
	}
	if len(plans) == 0 {
		return u.tr.Markdown("md.unsubscribe.none"), nil
	}
	lines := []string{u.tr.Markdown("md.command.list.header")}
	for i, plan := range plans {
		lines = append(lines, u.tr.Markdown("md.command.list.item", i+1, plan))
	}
	return strings.Join(lines, "\n"), nil
}

type group struct {
	key   string
	names []string
}

func (u *subscriptionUC) groups(groups ...group) string {
	var lines []string
	for _, g := range groups {
		if len(g.names) == 0 {
			continue
		}
		lines = append(lines, u.tr.Markdown(g.key, strings.Join(g.names, ", ")))
	}
	return strings.Join(lines, "\n")
}

// splitPlans splits a ",", ";" or newline separated plan list and drops duplicates.
func splitPlans(args string) []string {
	parts := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	seen := make(map[string]struct{}, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
