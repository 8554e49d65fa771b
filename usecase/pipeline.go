package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HmRandomGuy/T-V-B/domain"
	"github.com/HmRandomGuy/T-V-B/domain/repositories"
	"github.com/HmRandomGuy/T-V-B/internal/config"
	"github.com/HmRandomGuy/T-V-B/internal/metrics"
)

// Pipeline converts one inbound message into a voice note. It owns no
// mutable state across calls; every invocation works on its own buffers and
// the configuration is read-only.
type Pipeline struct {
	renderer   repositories.SpeechRenderer
	transcoder repositories.Transcoder
	prefs      repositories.PreferenceStore
	cfg        config.PipelineConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPipeline creates a request pipeline.
func NewPipeline(
	renderer repositories.SpeechRenderer,
	transcoder repositories.Transcoder,
	prefs repositories.PreferenceStore,
	cfg config.PipelineConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		renderer:   renderer,
		transcoder: transcoder,
		prefs:      prefs,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
	}
}

// Process runs normalize → render → transcode → wrap. Every failure is
// contained and classified; the returned Result always belongs to
// msg.ChatID.
func (p *Pipeline) Process(ctx context.Context, msg domain.InboundMessage) *domain.Result {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	text := normalizeText(msg.Text)
	if text == "" {
		return p.fail(ctx, msg.ChatID, domain.KindValidation, "empty message text", nil)
	}

	chunks := []string{text}
	if len([]rune(text)) > p.cfg.MaxTextLength {
		if !msg.FromDocument {
			return p.fail(ctx, msg.ChatID, domain.KindValidation,
				fmt.Sprintf("message exceeds %d characters", p.cfg.MaxTextLength), nil)
		}
		chunks = SplitText(text, p.cfg.MaxTextLength)
	}

	prefs := p.prefs.Get(msg.ChatID)
	voice := repositories.Voice{Language: prefs.Language().Code}

	raw, err := p.renderChunks(ctx, chunks, voice)
	if err != nil {
		return p.fail(ctx, msg.ChatID, domain.KindSynthesis, "speech rendering failed", err)
	}

	note, err := p.transcode(ctx, raw, prefs)
	if err != nil {
		return p.fail(ctx, msg.ChatID, domain.KindTranscode, "audio engine failed", err)
	}

	p.logger.Info("voice note produced",
		zap.Int64("chat_id", msg.ChatID),
		zap.Int("chunks", len(chunks)),
		zap.Int("size_bytes", len(note.Data)),
		zap.Duration("duration", note.Duration))

	return &domain.Result{ChatID: msg.ChatID, Note: note}
}

// renderChunks renders each chunk under the synthesis timeout and
// concatenates the encoded frames into one buffer.
func (p *Pipeline) renderChunks(ctx context.Context, chunks []string, voice repositories.Voice) (*domain.AudioBuffer, error) {
	var data []byte
	format := ""

	for i, chunk := range chunks {
		start := time.Now()
		buf, err := p.renderChunk(ctx, chunk, voice)
		p.metrics.SynthesisDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if len(buf.Data) == 0 {
			return nil, fmt.Errorf("chunk %d/%d: renderer returned empty audio", i+1, len(chunks))
		}
		data = append(data, buf.Data...)
		format = buf.Format
	}

	return &domain.AudioBuffer{Data: data, Format: format, Channels: 1}, nil
}

func (p *Pipeline) renderChunk(ctx context.Context, text string, voice repositories.Voice) (*domain.AudioBuffer, error) {
	renderCtx, cancel := context.WithTimeout(ctx, p.cfg.SynthesisTimeout)
	defer cancel()
	return p.renderer.Render(renderCtx, text, voice)
}

// transcode converts the rendered audio to the voice-note spec, retrying
// once with the fallback spec on engine failure.
func (p *Pipeline) transcode(ctx context.Context, raw *domain.AudioBuffer, prefs domain.Preferences) (*domain.VoiceNote, error) {
	spec := domain.VoiceNoteSpec(prefs.Speed().Multiplier)

	encoded, err := p.transcodeOnce(ctx, raw, spec)
	if err != nil && ctx.Err() == nil {
		p.logger.Warn("transcode failed, retrying with fallback spec", zap.Error(err))
		encoded, err = p.transcodeOnce(ctx, raw, domain.FallbackVoiceNoteSpec())
	}
	if err != nil {
		return nil, err
	}

	note := &domain.VoiceNote{
		Data:     encoded.Data,
		MIMEType: spec.MIMEType,
		Caption:  fmt.Sprintf("🗣️ Spoken in %s at %s", prefs.Language().Label, prefs.Speed().Label),
	}

	// Duration hint is best effort.
	if secs, err := p.transcoder.ProbeDuration(ctx, encoded); err == nil && secs > 0 {
		note.Duration = time.Duration(secs * float64(time.Second))
	}
	p.metrics.VoiceNoteSize.Observe(float64(len(note.Data)))

	return note, nil
}

func (p *Pipeline) transcodeOnce(ctx context.Context, raw *domain.AudioBuffer, spec domain.CodecSpec) (*domain.AudioBuffer, error) {
	transcodeCtx, cancel := context.WithTimeout(ctx, p.cfg.TranscodeTimeout)
	defer cancel()

	start := time.Now()
	encoded, err := p.transcoder.Transcode(transcodeCtx, raw, spec)
	p.metrics.TranscodeDuration.Observe(time.Since(start).Seconds())
	return encoded, err
}

// fail classifies the error, promoting anything that exhausted the global
// request budget to KindTimeout. The deadline comparison covers a per-step
// failure arriving right as the global deadline passes.
func (p *Pipeline) fail(ctx context.Context, chatID int64, kind domain.ErrorKind, msg string, err error) *domain.Result {
	deadline, ok := ctx.Deadline()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (ok && !time.Now().Before(deadline)) {
		kind = domain.KindTimeout
	}

	classified := domain.NewError(kind, msg, err)
	p.logger.Warn("request failed",
		zap.Int64("chat_id", chatID),
		zap.String("kind", kind.String()),
		zap.Error(classified))

	return &domain.Result{ChatID: chatID, Err: classified}
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}
