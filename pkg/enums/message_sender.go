package enums

import "fmt"

// MessageSender identifies who wrote a delivery chat message.
type MessageSender string

const (
	MessageSenderCustomer MessageSender = "customer"
	MessageSenderAgent    MessageSender = "agent"
	MessageSenderSystem   MessageSender = "system"
)

var validMessageSenders = []MessageSender{
	MessageSenderCustomer,
	MessageSenderAgent,
	MessageSenderSystem,
}

func (s MessageSender) String() string {
	return string(s)
}

func (s MessageSender) IsValid() bool {
	for _, candidate := range validMessageSenders {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseMessageSender(value string) (MessageSender, error) {
	for _, candidate := range validMessageSenders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message sender %q", value)
}
