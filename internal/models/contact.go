// internal/models/contact.go
package models

// Channel names used as keys in Contact.ChannelIDs.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelTelegram = "telegram"
)

type Contact struct {
	ID            string            `json:"id"`
	FullName      string            `json:"fullName"`
	Email         string            `json:"email"`
	Mobile        string            `json:"mobile"`
	BranchRaw     string            `json:"branch"`
	ExperienceRaw string            `json:"experience"`
	ChannelIDs    map[string]string `json:"channelIds,omitempty"`
}

// ChannelID returns the address registered for the given channel, if any.
func (c Contact) ChannelID(channel string) string {
	switch channel {
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.Mobile
	}
	if c.ChannelIDs == nil {
		return ""
	}
	return c.ChannelIDs[channel]
}
