package repositories

import (
	"context"

	"github.com/HmRandomGuy/T-V-B/domain"
)

// MessageSource delivers inbound text-to-voice requests from the messaging
// platform. Poll blocks up to the platform's long-poll window and returns
// zero or more requests. A returned error means the transport is unhealthy
// and the caller should restart the loop; malformed individual events are
// dropped inside the implementation, not surfaced here.
type MessageSource interface {
	Poll(ctx context.Context) ([]domain.InboundMessage, error)
}

// Dispatcher sends pipeline output back to the platform.
type Dispatcher interface {
	SendVoice(ctx context.Context, chatID int64, note *domain.VoiceNote) error
	SendText(ctx context.Context, chatID int64, text string) error

	// NotifyRecording signals the chat that audio work is in progress.
	// Best effort; failures are ignored.
	NotifyRecording(chatID int64)
}

// PreferenceStore keeps per-chat synthesis settings.
type PreferenceStore interface {
	Get(chatID int64) domain.Preferences
	SetLanguage(chatID int64, key string) error
	SetSpeed(chatID int64, key string) error
}
