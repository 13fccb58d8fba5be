package lifecycle

import (
	"fmt"
	"strings"

	"github.com/BearBump/AppWatch/internal/models"
)

func launchNotice(a *models.Announcement) models.Notification {
	return models.Notification{
		Channel: models.ChannelUpdates,
		Text:    fmt.Sprintf("🎉 *%s* is LIVE on the App Store!\n%s", a.DisplayName, a.StoreLink),
		IconURL: a.IconURL,
		Mention: true,
	}
}

func terminationNotice(t *models.TrackedApp, days int) models.Notification {
	var b strings.Builder
	fmt.Fprintf(&b, "⛔ *%s* is no longer available on the App Store after %s.", t.DisplayName, DaysText(days))
	if t.Submitter != "" {
		fmt.Fprintf(&b, "\nSubmitted by %s.", models.SubmitterMention(t.Submitter))
	}
	if t.StoreLink != "" {
		b.WriteString("\n" + t.StoreLink)
	}
	return models.Notification{Channel: models.ChannelUpdates, Text: b.String()}
}

func confirmationNotice(t *models.TrackedApp) models.Notification {
	text := fmt.Sprintf("✅ *%s* has stayed live for 3 weeks and is now confirmed.", t.DisplayName)
	if t.StoreLink != "" {
		text += "\n" + t.StoreLink
	}
	return models.Notification{Channel: models.ChannelUpdates, Text: text}
}

// DaysText renders a whole-day duration: "1 day", "5 days".
func DaysText(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
