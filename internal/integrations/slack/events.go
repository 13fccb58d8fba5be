package slack

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/slack-go/slack/slackevents"
)

// ParseEvent decodes an Events API payload. The verification token is not
// checked; requests are authenticated by VerifyRequest instead.
func ParseEvent(body []byte) (slackevents.EventsAPIEvent, error) {
	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return ev, errors.Wrap(err, "parse event")
	}
	return ev, nil
}

func Challenge(ev slackevents.EventsAPIEvent) (string, bool) {
	if ev.Type != slackevents.URLVerification {
		return "", false
	}
	v, ok := ev.Data.(*slackevents.EventsAPIURLVerificationEvent)
	if !ok {
		return "", false
	}
	return v.Challenge, true
}

func EventID(ev slackevents.EventsAPIEvent) string {
	if cb, ok := ev.Data.(*slackevents.EventsAPICallbackEvent); ok {
		return cb.EventID
	}
	return ""
}

// UserMessage returns a plain message posted by a person. Edits, joins and bot
// posts carry a subtype or bot id.
func UserMessage(ev slackevents.EventsAPIEvent) (*slackevents.MessageEvent, bool) {
	if ev.Type != slackevents.CallbackEvent {
		return nil, false
	}
	msg, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || msg.SubType != "" || msg.BotID != "" || msg.Text == "" {
		return nil, false
	}
	return msg, true
}

// IsRetry reports a redelivery; the first delivery has already been handled.
func IsRetry(retryNum, retryReason string) bool {
	return retryNum != "" || retryReason != ""
}
