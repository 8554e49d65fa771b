package domain

import "time"

// InboundMessage is a single text-to-voice request taken from the messaging
// platform. It is immutable and owned by the pipeline invocation processing
// it.
type InboundMessage struct {
	ChatID       int64
	MessageID    int
	Text         string
	ReceivedAt   time.Time
	FromDocument bool
}

// AudioBuffer holds encoded audio handed from one pipeline stage to the
// next. Ownership is exclusive; a stage that consumes a buffer must not
// reuse it afterwards.
type AudioBuffer struct {
	Data       []byte
	Format     string // e.g. "mp3", "ogg/opus"
	SampleRate int
	Channels   int
}

// CodecSpec describes the target encoding for a transcode.
type CodecSpec struct {
	Codec       string
	Container   string
	MIMEType    string
	Channels    int
	BitrateKbps int
	// Tempo is a playback speed multiplier applied during transcode.
	// 1.0 means unchanged.
	Tempo float64
}

// VoiceNote is the final artifact sent back to the chat. Data conforms to
// the platform's accepted voice-note codec and container.
type VoiceNote struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
	Caption  string
}

// Result is the outcome of exactly one pipeline invocation. Either Note is
// set or Err carries a classified *Error.
type Result struct {
	ChatID int64
	Note   *VoiceNote
	Err    error
}

// VoiceNoteSpec returns the OGG/Opus spec Telegram requires for playable
// voice notes, mono, at the given tempo.
func VoiceNoteSpec(tempo float64) CodecSpec {
	return CodecSpec{
		Codec:       "libopus",
		Container:   "ogg",
		MIMEType:    "audio/ogg",
		Channels:    1,
		BitrateKbps: 32,
		Tempo:       tempo,
	}
}

// FallbackVoiceNoteSpec is used for the single transcode retry after a
// failure: same codec, no tempo filter.
func FallbackVoiceNoteSpec() CodecSpec {
	return VoiceNoteSpec(1.0)
}
