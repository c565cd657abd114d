package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/domain/ports/repository"
	"build-notifier/internal/infra/logging"
	"build-notifier/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// OnBuildFailureEvent decodes a build webhook and notifies its subscribers.
	OnBuildFailureEvent(ctx context.Context, payload []byte) error
	// Notify sends the failure to every chat subscribed to the build's plan
	// and returns how many messages were queued.
	Notify(ctx context.Context, w *model.BuildWebhook) (int, error)
}

type notificationUC struct {
	subs     repository.SubscriptionRepository
	sender   adapter.MessageSender
	dedupe   adapter.Deduper
	resolver adapter.UsernameResolver
	tr       adapter.Translator
	log      *zerolog.Logger
}

// NewNotificationUseCase wires the notification path. dedupe and resolver may be nil.
func NewNotificationUseCase(
	subs repository.SubscriptionRepository,
	sender adapter.MessageSender,
	dedupe adapter.Deduper,
	resolver adapter.UsernameResolver,
	tr adapter.Translator,
	logger *zerolog.Logger,
) *notificationUC {
	return &notificationUC{subs: subs, sender: sender, dedupe: dedupe, resolver: resolver, tr: tr, log: logger}
}

func (n *notificationUC) OnBuildFailureEvent(ctx context.Context, payload []byte) error {
	w, err := model.ParseBuildWebhook(payload)
	if err != nil {
		return err
	}
	_, err = n.Notify(ctx, w)
	return err
}

func (n *notificationUC) Notify(ctx context.Context, w *model.BuildWebhook) (int, error) {
	defer logging.TraceDuration(n.log, "NotificationUC.Notify")()

	if strings.TrimSpace(w.UUID) == "" {
		n.log.Warn().Str("result_key", w.Build.BuildResultKey).Msg("webhook without uuid dropped")
		metrics.IncWebhook("dropped")
		return 0, nil
	}
	if n.dedupe != nil {
		first, err := n.dedupe.Claim(ctx, w.UUID)
		if err != nil {
			n.log.Warn().Err(err).Str("uuid", w.UUID).Msg("dedupe lookup failed, delivering anyway")
		} else if !first {
			n.log.Info().Str("uuid", w.UUID).Msg("duplicate webhook skipped")
			metrics.IncWebhook("duplicate")
			return 0, nil
		}
	}

	plan := w.PlanName()
	if plan == "" {
		n.log.Warn().Str("uuid", w.UUID).Msg("webhook without plan dropped")
		metrics.IncWebhook("dropped")
		return 0, fmt.Errorf("webhook %s: %w", w.UUID, domain.ErrInvalidPlanName)
	}
	chats, err := n.subs.ListChats(ctx, plan)
	if err != nil {
		return 0, fmt.Errorf("list chats for %q: %w", plan, err)
	}
	if len(chats) == 0 {
		n.log.Info().Str("plan", plan).Msg("no subscribers for plan")
		metrics.IncWebhook("no_subscribers")
		return 0, nil
	}

	text := n.tr.Markdown("md.notify.build_failed",
		w.Build.BuildResultKey,
		n.resolveAuthor(ctx, w.Commit.Author),
		w.BranchName,
		w.RepositoryURL,
		w.Commit.Hash,
		w.Commit.Message,
	)

	sent := 0
	for _, chatID := range chats {
		msg := model.NewTextMessage(chatID, text, model.StatusCompleted, uuid.NewString()).WithMarkdown()
		if err := n.sender.Send(ctx, msg); err != nil {
			n.log.Error().Err(err).Str("chat_id", chatID).Str("plan", plan).Msg("failed to queue notification")
			continue
		}
		sent++
	}
	metrics.AddNotificationsSent(sent)
	metrics.IncWebhook("delivered")
	n.log.Info().Str("plan", plan).Int("chats", sent).Str("uuid", w.UUID).Msg("build failure delivered")
	return sent, nil
}

// resolveAuthor swaps the commit author for a chat username when the lookup succeeds.
func (n *notificationUC) resolveAuthor(ctx context.Context, author string) string {
	if n.resolver == nil || strings.TrimSpace(author) == "" {
		return author
	}
	login := domain.EmailLocalPart(author)
	if login == "" {
		login = strings.TrimSpace(author)
	}
	username, err := n.resolver.Resolve(ctx, login)
	if err != nil {
		n.log.Warn().Err(err).Str("login", login).Msg("username lookup failed")
		return author
	}
	if username == "" {
		return author
	}
	return username
}
