package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HmRandomGuy/T-V-B/domain"
	"github.com/HmRandomGuy/T-V-B/domain/repositories"
)

const (
	defaultTranslateBaseURL = "https://translate.google.com/translate_tts"
	defaultTranslateTimeout = 30 * time.Second

	// The translate_tts endpoint rejects long queries; inputs are split
	// into fragments of at most this many characters and the MP3 frames
	// are concatenated.
	maxFragmentChars = 200
)

// GoogleTranslateConfig holds configuration for the GoogleTranslateTTS
// renderer. All fields are optional:
// - BaseURL: endpoint override, mainly for tests (default: the public translate_tts endpoint)
// - Timeout: per-request HTTP timeout (default: 30s)
type GoogleTranslateConfig struct {
	BaseURL string
	Timeout time.Duration
}

// GoogleTranslateTTS renders speech through the unauthenticated Google
// Translate TTS endpoint, one fragment per HTTP request.
type GoogleTranslateTTS struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.SpeechRenderer = (*GoogleTranslateTTS)(nil)

// NewGoogleTranslateTTS creates the renderer, applying defaults.
func NewGoogleTranslateTTS(config GoogleTranslateConfig, logger *zap.Logger) *GoogleTranslateTTS {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultTranslateBaseURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTranslateTimeout
	}

	return &GoogleTranslateTTS{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Render implements repositories.SpeechRenderer.
func (g *GoogleTranslateTTS) Render(ctx context.Context, text string, voice repositories.Voice) (*domain.AudioBuffer, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	lang := voice.Language
	if lang == "" {
		lang = "en"
	}

	fragments := fragmentText(text, maxFragmentChars)
	g.logger.Debug("rendering speech",
		zap.String("language", lang),
		zap.Int("fragments", len(fragments)))

	var data []byte
	for i, fragment := range fragments {
		audio, err := g.fetchFragment(ctx, fragment, lang, voice.Slow)
		if err != nil {
			return nil, fmt.Errorf("fragment %d/%d: %w", i+1, len(fragments), err)
		}
		data = append(data, audio...)
	}

	return &domain.AudioBuffer{Data: data, Format: "mp3", SampleRate: 24000, Channels: 1}, nil
}

func (g *GoogleTranslateTTS) fetchFragment(ctx context.Context, text, lang string, slow bool) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)
	if slow {
		q.Set("ttsspeed", "0.3")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("endpoint returned empty audio")
	}
	return body, nil
}

// fragmentText splits text into pieces of at most maxChars runes, breaking
// on spaces where possible.
func fragmentText(text string, maxChars int) []string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}

	var fragments []string
	for len(runes) > maxChars {
		window := string(runes[:maxChars])
		cut := strings.LastIndex(window, " ")
		if cut <= 0 {
			cut = len(window)
		}
		cutRunes := len([]rune(window[:cut]))
		fragments = append(fragments, strings.TrimSpace(string(runes[:cutRunes])))
		runes = runes[cutRunes:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		fragments = append(fragments, rest)
	}
	return fragments
}
