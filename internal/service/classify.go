package service

import "strings"

// FailureClass describes why a delivery to one recipient failed.
type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureBlocked
	FailureNeverStarted
	FailureDeactivated
)

func (c FailureClass) String() string {
	switch c {
	case FailureBlocked:
		return "blocked"
	case FailureNeverStarted:
		return "never_started"
	case FailureDeactivated:
		return "deactivated"
	default:
		return "other"
	}
}

// ClassifyDeliveryError maps a Telegram API error to a failure class.
// The Bot API only exposes these conditions as message text, so the
// substrings below are the single non-portable piece of the dispatcher.
func ClassifyDeliveryError(err error) FailureClass {
	if err == nil {
		return FailureOther
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "bot was blocked by the user"):
		return FailureBlocked
	case strings.Contains(msg, "bot can't initiate conversation with a user"):
		return FailureNeverStarted
	case strings.Contains(msg, "user is deactivated"):
		return FailureDeactivated
	default:
		return FailureOther
	}
}
