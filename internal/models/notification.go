package models

// Delivery channels.
const (
	ChannelUpdates = "updates"
	ChannelSubmit  = "submit"
	ChannelReport  = "report"
)

// Notification is what the lifecycle hands to a delivery channel. Mention asks the
// channel to prepend its mass-mention token.
type Notification struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
	Mention bool   `json:"mention,omitempty"`
}

// SubmitterMention renders a chat user id as a mention; anything else is returned
// unchanged.
func SubmitterMention(submitter string) string {
	if len(submitter) < 3 || (submitter[0] != 'U' && submitter[0] != 'W') {
		return submitter
	}
	for _, r := range submitter[1:] {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return submitter
		}
	}
	return "<@" + submitter + ">"
}
