package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HmRandomGuy/T-V-B/domain"
	"github.com/HmRandomGuy/T-V-B/domain/repositories"
)

const (
	defaultFFmpegPath  = "ffmpeg"
	defaultFFprobePath = "ffprobe"

	opusSampleRate = 48000

	// After the context kills the engine, waiting on its pipes is bounded
	// by this delay; orphaned children of the engine would otherwise hold
	// stderr open and stall the call past its deadline.
	killGracePeriod = time.Second
)

// Config locates the engine binaries and the scratch area.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	// WorkDir is the base for per-request temp directories. Empty means the
	// OS default temp location.
	WorkDir string
}

// Transcoder drives ffmpeg as a subordinate process. Each call works in its
// own temp directory which is removed on every exit path; the process is
// killed when the context expires.
type Transcoder struct {
	cfg    Config
	logger *zap.Logger
}

var _ repositories.Transcoder = (*Transcoder)(nil)

// New creates a Transcoder, applying binary-path defaults.
func New(cfg Config, logger *zap.Logger) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = defaultFFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = defaultFFprobePath
	}
	return &Transcoder{cfg: cfg, logger: logger}
}

// Transcode converts buf into the target spec.
func (t *Transcoder) Transcode(ctx context.Context, buf *domain.AudioBuffer, spec domain.CodecSpec) (*domain.AudioBuffer, error) {
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("input buffer is empty")
	}

	dir, err := os.MkdirTemp(t.cfg.WorkDir, "tvb-transcode-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			t.logger.Error("failed to remove work dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	inPath := filepath.Join(dir, uuid.NewString()+".in")
	outPath := filepath.Join(dir, uuid.NewString()+"."+spec.Container)

	if err := os.WriteFile(inPath, buf.Data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input audio: %w", err)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-i", inPath,
		"-vn",
		"-ac", strconv.Itoa(spec.Channels),
		"-c:a", spec.Codec,
		"-b:a", fmt.Sprintf("%dk", spec.BitrateKbps),
	}
	if spec.Tempo != 1.0 {
		args = append(args, "-filter:a", AtempoChain(spec.Tempo))
	}
	args = append(args, "-f", spec.Container, "-y", outPath)

	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	cmd.WaitDelay = killGracePeriod
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("engine killed after deadline: %w", ctx.Err())
		}
		return nil, fmt.Errorf("engine exited abnormally: %w (%s)", err, lastLine(stderr.String()))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("engine produced no output file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("engine produced empty output")
	}

	return &domain.AudioBuffer{
		Data:       data,
		Format:     spec.Container + "/" + spec.Codec,
		SampleRate: opusSampleRate,
		Channels:   spec.Channels,
	}, nil
}

// ProbeDuration asks ffprobe for the playable length of an encoded buffer.
func (t *Transcoder) ProbeDuration(ctx context.Context, buf *domain.AudioBuffer) (float64, error) {
	dir, err := os.MkdirTemp(t.cfg.WorkDir, "tvb-probe-")
	if err != nil {
		return 0, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, uuid.NewString()+".audio")
	if err := os.WriteFile(path, buf.Data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write probe input: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	cmd.WaitDelay = killGracePeriod

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// AtempoChain builds an ffmpeg audio filter for the given speed multiplier.
// A single atempo stage only accepts factors in [0.5, 2.0], so larger or
// smaller multipliers are decomposed into a chain of stages.
func AtempoChain(tempo float64) string {
	var stages []string
	for tempo > 2.0 {
		stages = append(stages, "atempo=2")
		tempo /= 2.0
	}
	for tempo < 0.5 {
		stages = append(stages, "atempo=0.5")
		tempo /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%g", tempo))
	return strings.Join(stages, ",")
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "no engine diagnostics"
	}
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
