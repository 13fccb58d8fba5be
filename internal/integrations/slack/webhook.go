package slack

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/pkg/errors"
	slackapi "github.com/slack-go/slack"
)

type WebhookURLs struct {
	Updates string
	Submit  string
	Report  string
}

// Webhooks delivers notifications to incoming-webhook URLs. Submit and report
// notifications fall back to the updates URL when their own is not set.
type Webhooks struct {
	urls     WebhookURLs
	pingMode string
	httpc    *http.Client
}

func NewWebhooks(urls WebhookURLs, pingMode string) *Webhooks {
	return &Webhooks{
		urls:     urls,
		pingMode: pingMode,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PingToken maps the configured ping mode to the mass-mention prefix.
func PingToken(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "channel", "here", "everyone":
		return "<!" + mode + "> "
	}
	return ""
}

func (w *Webhooks) URL(channel string) string {
	switch channel {
	case models.ChannelSubmit:
		if w.urls.Submit != "" {
			return w.urls.Submit
		}
	case models.ChannelReport:
		if w.urls.Report != "" {
			return w.urls.Report
		}
	}
	return w.urls.Updates
}

func buildMessage(n models.Notification, pingMode string) *slackapi.WebhookMessage {
	text := n.Text
	if n.Mention {
		text = PingToken(pingMode) + text
	}
	var blocks []slackapi.Block
	if n.IconURL != "" {
		blocks = append(blocks, slackapi.NewImageBlock(n.IconURL, "App icon", "", nil))
	}
	blocks = append(blocks, slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType, text, false, false), nil, nil))
	return &slackapi.WebhookMessage{
		Text:   text,
		Blocks: &slackapi.Blocks{BlockSet: blocks},
	}
}

func (w *Webhooks) Notify(ctx context.Context, n models.Notification) error {
	u := w.URL(n.Channel)
	if u == "" {
		slog.Warn("no webhook configured, dropping notification", "channel", n.Channel)
		return nil
	}
	if err := slackapi.PostWebhookCustomHTTPContext(ctx, u, w.httpc, buildMessage(n, w.pingMode)); err != nil {
		return errors.Wrap(err, "post webhook")
	}
	return nil
}
