package repositories

import (
	"context"

	"github.com/HmRandomGuy/T-V-B/domain"
)

// Voice selects how rendered speech should sound.
type Voice struct {
	Language string // BCP-47-ish language code, e.g. "en", "hi"
	Slow     bool
}

// SpeechRenderer turns text into a raw audio buffer. Implementations must
// honor ctx cancellation and fail instead of hanging.
type SpeechRenderer interface {
	Render(ctx context.Context, text string, voice Voice) (*domain.AudioBuffer, error)
}
