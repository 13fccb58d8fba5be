package watch_api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/BearBump/AppWatch/internal/integrations/slack"
	"github.com/BearBump/AppWatch/internal/services/intake"
)

// Responses to the events endpoint. Anything but a 2xx makes the platform retry.
const (
	EventRetryAck     = "retry-ack"
	EventIgnored      = "ignored"
	EventOtherChannel = "ignored-other-channel"
	EventDuplicate    = "duplicate"
)

const commandUsage = "Usage: `/appwatch https://apps.apple.com/us/app/.../id1234567890`"

func (a *API) readSigned(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return nil, false
	}
	if err := slack.VerifyRequest(a.signingSecret, r.Header, body); err != nil {
		slog.Warn("rejected chat request", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusUnauthorized, "bad signature")
		return nil, false
	}
	return body, true
}

func (a *API) slackEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := a.readSigned(w, r)
	if !ok {
		return
	}

	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	ev, err := slack.ParseEvent(body)
	if err != nil {
		// Event types the library does not know are not ours to handle.
		slog.Info("unparsed chat event", "error", err.Error())
		writeText(w, http.StatusOK, EventIgnored)
		return
	}
	if challenge, ok := slack.Challenge(ev); ok {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge})
		return
	}
	if slack.IsRetry(r.Header.Get("X-Slack-Retry-Num"), r.Header.Get("X-Slack-Retry-Reason")) {
		writeText(w, http.StatusOK, EventRetryAck)
		return
	}
	msg, ok := slack.UserMessage(ev)
	if !ok {
		writeText(w, http.StatusOK, EventIgnored)
		return
	}
	if a.submitChannelID != "" && msg.Channel != a.submitChannelID {
		writeText(w, http.StatusOK, EventOtherChannel)
		return
	}

	ctx := r.Context()
	eventID := slack.EventID(ev)
	if eventID != "" {
		created, err := a.d.Events.TryRegisterEvent(ctx, eventID, a.now())
		if err != nil {
			slog.Error("register chat event", "event_id", eventID, "error", err)
			writeError(w, http.StatusInternalServerError, "register event")
			return
		}
		if !created {
			writeText(w, http.StatusOK, EventDuplicate)
			return
		}
	}

	res, err := a.d.Messages.HandleMessage(ctx, intake.Message{
		Text:    msg.Text,
		User:    msg.User,
		Channel: msg.Channel,
	})
	if err != nil {
		// The submitter already got an advisory; a 5xx would only trigger a retry.
		slog.Error("handle chat message", "event_id", eventID, "error", err)
		writeText(w, http.StatusOK, "error")
		return
	}
	writeText(w, http.StatusOK, res)
}

type ephemeral struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// slackCommand acks right away; the check runs detached and reports through the
// submit channel.
func (a *API) slackCommand(w http.ResponseWriter, r *http.Request) {
	body, ok := a.readSigned(w, r)
	if !ok {
		return
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	text := strings.TrimSpace(form.Get("text"))
	if text == "" {
		writeJSON(w, http.StatusOK, ephemeral{ResponseType: "ephemeral", Text: commandUsage})
		return
	}
	msg := intake.Message{
		Text:    text,
		User:    form.Get("user_id"),
		Channel: form.Get("channel_id"),
	}

	ctx := context.WithoutCancel(r.Context())
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		res, err := a.d.Messages.HandleMessage(ctx, msg)
		if err != nil {
			slog.Error("slash command", "user", msg.User, "error", err)
			return
		}
		slog.Info("slash command handled", "user", msg.User, "result", res)
	}()

	writeJSON(w, http.StatusOK, ephemeral{
		ResponseType: "ephemeral",
		Text:         "⏳ Checking, results will be posted shortly.",
	})
}
