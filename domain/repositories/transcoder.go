package repositories

import (
	"context"

	"github.com/HmRandomGuy/T-V-B/domain"
)

// Transcoder converts an audio buffer into the target codec and container.
// Implementations own any subordinate process or temporary storage they use
// and must release it on every exit path, including cancellation.
type Transcoder interface {
	Transcode(ctx context.Context, buf *domain.AudioBuffer, spec domain.CodecSpec) (*domain.AudioBuffer, error)

	// ProbeDuration returns the playable duration of an encoded buffer.
	// Best effort; returns zero when the engine cannot tell.
	ProbeDuration(ctx context.Context, buf *domain.AudioBuffer) (durationSeconds float64, err error)
}
