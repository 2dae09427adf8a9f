package enums

import "fmt"

// PortalChannel is the out-of-band channel used to deliver one-time codes.
type PortalChannel string

const (
	PortalChannelSMS   PortalChannel = "sms"
	PortalChannelEmail PortalChannel = "email"
)

var validPortalChannels = []PortalChannel{
	PortalChannelSMS,
	PortalChannelEmail,
}

func (c PortalChannel) String() string {
	return string(c)
}

func (c PortalChannel) IsValid() bool {
	for _, candidate := range validPortalChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParsePortalChannel(value string) (PortalChannel, error) {
	for _, candidate := range validPortalChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid portal channel %q", value)
}
