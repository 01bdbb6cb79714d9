package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rebuild-labs/rebuild-ci/internal/domain"
	"github.com/rebuild-labs/rebuild-ci/internal/platform/chat"
)

type WebhookPoster interface {
	Post(ctx context.Context, msg chat.Message) error
}

// Style selects the payload shape of chat messages.
type Style int

const (
	StyleInline Style = iota
	StyleAttachment
)

const (
	SourceTests  = "run-tests"
	SourceDeploy = "ship-it"
)

type ChatNotifier struct {
	poster WebhookPoster
	run    domain.RunContext
	style  Style
	source string
	logger *slog.Logger
}

// NewChatNotifier returns a notifier. A nil poster disables delivery.
func NewChatNotifier(poster WebhookPoster, run domain.RunContext, style Style, source string, logger *slog.Logger) *ChatNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &ChatNotifier{poster: poster, run: run, style: style, source: source, logger: logger}
	if poster == nil {
		logger.Info("chat notifications disabled", "reason", "webhook url not configured")
	}
	return n
}

func (n *ChatNotifier) Enabled() bool { return n != nil && n.poster != nil }

// Notify posts one message for event. Delivery failures are logged only.
func (n *ChatNotifier) Notify(ctx context.Context, event domain.NotificationEvent) {
	if !n.Enabled() {
		return
	}
	if err := n.poster.Post(ctx, n.Message(event)); err != nil {
		n.logger.Warn("chat notification failed", "kind", string(event.Kind), "error", err)
	}
}

// Message renders the webhook payload for event.
func (n *ChatNotifier) Message(event domain.NotificationEvent) chat.Message {
	actor := strings.TrimSpace(n.run.Actor)
	if actor == "" {
		actor = "unknown"
	}
	switch n.style {
	case StyleAttachment:
		title := fmt.Sprintf("[%s] on %s", n.source, n.run.DisplayName())
		if branch := n.run.Branch(); branch != "" {
			title += ":" + branch
		}
		title += " by " + actor
		return chat.Message{Attachments: []chat.Attachment{{
			Title: title,
			Text:  event.Message,
			Color: event.Color(),
		}}}
	default:
		lines := []string{
			fmt.Sprintf("*%s %s triggered by %s*", n.run.DisplayName(), n.source, actor),
			event.Message,
		}
		if link := n.run.Link(); link != "" {
			lines = append(lines, link)
		}
		return chat.Message{Text: strings.Join(lines, "\n"), Color: event.Color()}
	}
}
