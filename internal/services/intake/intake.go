package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/BearBump/AppWatch/internal/services/lifecycle"
)

// HandleMessage results, returned to the chat platform as the response body.
const (
	ResultOK                = "ok"
	ResultBadLink           = "bad-link"
	ResultAlreadyAnnounced  = "already-announced"
	ResultAlreadyTracked    = "already-tracked"
	ResultAlreadySubscribed = "already-subscribed"
)

const BadLinkText = "❌ That doesn't look like an App Store link.\n" +
	"Please paste a full URL like `https://apps.apple.com/us/app/.../id1234567890`."

type Subscriber interface {
	Subscribe(ctx context.Context, req lifecycle.SubscribeRequest) (lifecycle.SubscribeResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Message struct {
	Text    string
	User    string
	Channel string
}

// Service turns chat submissions into subscriptions and answers on the submit
// channel.
type Service struct {
	subs           Subscriber
	notifier       Notifier
	updatesChannel string
}

func New(subs Subscriber, n Notifier, updatesChannel string) *Service {
	if updatesChannel == "" {
		updatesChannel = "the updates channel"
	}
	return &Service{subs: subs, notifier: n, updatesChannel: updatesChannel}
}

func (s *Service) HandleMessage(ctx context.Context, msg Message) (string, error) {
	id, _, ok := ParseStoreLink(msg.Text)
	if !ok {
		s.reply(ctx, BadLinkText)
		return ResultBadLink, nil
	}

	res, err := s.subs.Subscribe(ctx, lifecycle.SubscribeRequest{
		Identity:  id,
		Submitter: msg.User,
		Source:    "chat:" + msg.Channel,
		CheckNow:  true,
	})
	if err != nil {
		s.reply(ctx, fmt.Sprintf("⚠️ Could not process *%s*, please try again later.", id.Key()))
		return "", err
	}

	switch res.Outcome {
	case lifecycle.OutcomeAlreadyAnnounced:
		s.reply(ctx, fmt.Sprintf("ℹ️ *%s* was already announced as LIVE. See %s.", announcedName(res, id), s.updatesChannel))
		return ResultAlreadyAnnounced, nil
	case lifecycle.OutcomeAlreadyTracked:
		s.reply(ctx, fmt.Sprintf("ℹ️ *%s* is already being tracked.", trackedName(res, id)))
		return ResultAlreadyTracked, nil
	case lifecycle.OutcomeAlreadySubscribed:
		s.reply(ctx, fmt.Sprintf("⚠️ Already subscribed for this app. I'll notify in %s when it goes live.", s.updatesChannel))
		return ResultAlreadySubscribed, nil
	case lifecycle.OutcomeLaunched:
		s.reply(ctx, fmt.Sprintf("✅ *%s* is already live. Posted in %s.", announcedName(res, id), s.updatesChannel))
	default:
		s.reply(ctx, fmt.Sprintf("📡 Subscribed *%s*. I'll notify in %s when it goes live.", id.Key(), s.updatesChannel))
	}
	return ResultOK, nil
}

// reply failures are logged only; the submission itself already went through.
func (s *Service) reply(ctx context.Context, text string) {
	if err := s.notifier.Notify(ctx, models.Notification{Channel: models.ChannelSubmit, Text: text}); err != nil {
		slog.Error("submit channel reply", "error", err.Error())
	}
}

func announcedName(res lifecycle.SubscribeResult, id models.Identity) string {
	if res.Announcement != nil && res.Announcement.DisplayName != "" {
		return res.Announcement.DisplayName
	}
	return id.Key()
}

func trackedName(res lifecycle.SubscribeResult, id models.Identity) string {
	if res.Tracked != nil && res.Tracked.DisplayName != "" {
		return res.Tracked.DisplayName
	}
	return id.Key()
}
