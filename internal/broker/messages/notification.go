package messages

import (
	"time"

	"github.com/BearBump/AppWatch/internal/models"
)

// Notification is the value published on the notifications topic; the key is the
// delivery channel.
type Notification struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Text      string    `json:"text"`
	IconURL   string    `json:"icon_url,omitempty"`
	Mention   bool      `json:"mention,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewNotification(id string, n models.Notification, at time.Time) Notification {
	return Notification{
		ID:        id,
		Channel:   n.Channel,
		Text:      n.Text,
		IconURL:   n.IconURL,
		Mention:   n.Mention,
		CreatedAt: at.UTC(),
	}
}

func (m Notification) Model() models.Notification {
	return models.Notification{
		Channel: m.Channel,
		Text:    m.Text,
		IconURL: m.IconURL,
		Mention: m.Mention,
	}
}
