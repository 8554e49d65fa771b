package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HmRandomGuy/T-V-B/domain"
	"github.com/HmRandomGuy/T-V-B/domain/repositories"
)

const (
	defaultElevenBaseURL = "https://api.elevenlabs.io/v1"
	defaultElevenVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultElevenModelID = "eleven_multilingual_v2"
	defaultElevenTimeout = 60 * time.Second
	defaultStability     = 0.5
	defaultClarity       = 0.75
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS renderer.
// Required fields:
// - APIKey: your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL, VoiceID, ModelID, Timeout, Stability, Clarity
type ElevenLabsConfig struct {
	APIKey     string
	APIBaseURL string
	VoiceID    string
	ModelID    string
	Timeout    time.Duration
	Stability  float64
	Clarity    float64
}

// ElevenLabsTTS implements SpeechRenderer using the Eleven Labs API. It
// requests a complete MP3 buffer rather than a stream; voice notes are
// short enough that buffering whole responses is fine.
type ElevenLabsTTS struct {
	apiKey     string
	apiBaseURL string
	voiceID    string
	modelID    string
	stability  float64
	clarity    float64
	client     *http.Client
	logger     *zap.Logger
}

var _ repositories.SpeechRenderer = (*ElevenLabsTTS)(nil)

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	LanguageCode  string                  `json:"language_code,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig.
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	return nil
}

// NewElevenLabsTTS creates a new Eleven Labs renderer.
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultElevenBaseURL
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultElevenVoiceID
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultElevenModelID
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultElevenTimeout
	}
	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
	}
	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
	}

	return &ElevenLabsTTS{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		voiceID:    voiceID,
		modelID:    modelID,
		stability:  stability,
		clarity:    clarity,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// NewElevenLabsConfigFromEnv reads the renderer configuration from
// environment variables.
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	return ElevenLabsConfig{
		APIKey:     os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL: os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:    os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:    os.Getenv("ELEVEN_LABS_MODEL_ID"),
	}
}

// Render implements repositories.SpeechRenderer.
func (e *ElevenLabsTTS) Render(ctx context.Context, text string, voice repositories.Voice) (*domain.AudioBuffer, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	request := elevenLabsRequest{
		Text:         text,
		ModelID:      e.modelID,
		LanguageCode: voice.Language,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=mp3_44100_128", e.apiBaseURL, e.voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(errorBody))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("API returned empty audio")
	}

	e.logger.Debug("rendered speech",
		zap.String("voiceID", e.voiceID),
		zap.Int("bytes", len(data)))

	return &domain.AudioBuffer{Data: data, Format: "mp3", SampleRate: 44100, Channels: 1}, nil
}
