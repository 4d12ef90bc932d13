package video

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/stage"
)

var commandContext = exec.CommandContext

// Compressor transcodes the raw capture into a compressed MP4.
type Compressor struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// NewCompressor constructs the compression handler.
func NewCompressor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Compressor {
	c := &Compressor{cfg: cfg, store: store}
	c.SetLogger(logger)
	return c
}

// SetLogger updates the handler's logging destination.
func (c *Compressor) SetLogger(logger *slog.Logger) {
	c.logger = logging.NewComponentLogger(logger, "video")
}

func (c *Compressor) Prepare(ctx context.Context, sub *queue.Submission) error {
	sub.InitProgress("Compressing", "Starting video compression")
	return nil
}

func (c *Compressor) Execute(ctx context.Context, sub *queue.Submission) error {
	logger := logging.WithContext(ctx, c.logger)

	source := strings.TrimSpace(sub.RecordingFile)
	if source == "" {
		logger.Info("no recording to compress; skipping")
		sub.SetProgressComplete("Compressing", "No recording captured")
		return nil
	}
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrValidation, "compress", "validate input",
			"Recording file is missing; the capture stage may not have completed", err)
	}

	outputDir := filepath.Join(strings.TrimSpace(c.cfg.Paths.StagingDir), fmt.Sprintf("submission-%d", sub.ID))
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "compress", "ensure output dir",
			"Failed to create submission staging directory; set staging_dir to a writable path", err)
	}

	name := strings.TrimSpace(sub.ArtworkID)
	if name == "" {
		base := filepath.Base(source)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	outputPath := filepath.Join(outputDir, name+".mp4")

	encodeCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.Video.TimeoutMinutes > 0 {
		encodeCtx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.Video.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	args := c.ffmpegArgs(source, outputPath)
	logger.Info("launching ffmpeg",
		logging.String("input", source),
		logging.String("output", outputPath),
		logging.String("command", c.cfg.FFmpegBinary()+" "+strings.Join(args, " ")))

	cmd := commandContext(encodeCtx, c.cfg.FFmpegBinary(), args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "compress", "ffmpeg", "Failed to attach to ffmpeg output", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "compress", "ffmpeg",
			"Failed to start ffmpeg; confirm it is installed and on PATH", err)
	}

	// ffmpeg writes progress to stderr; keep a short tail for error context.
	var tail []string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail = append(tail, line)
		if len(tail) > 10 {
			tail = tail[1:]
		}
	}

	if err := cmd.Wait(); err != nil {
		if encodeCtx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrTimeout, "compress", "ffmpeg",
				fmt.Sprintf("Compression exceeded %dm", c.cfg.Video.TimeoutMinutes), err)
		}
		detail := strings.Join(tail, " | ")
		return services.Wrap(services.ErrExternalTool, "compress", "ffmpeg",
			fmt.Sprintf("ffmpeg failed: %s", detail), err)
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "compress", "validate output",
			"ffmpeg exited cleanly but produced no output file", err)
	}

	sub.CompressedFile = outputPath
	sub.SetProgressComplete("Compressing", "Video compressed")

	if err := os.Remove(source); err != nil {
		logger.Warn("failed to remove raw recording", logging.String("path", source), logging.Error(err))
	} else {
		logger.Info("removed raw recording", logging.String("path", source))
		sub.RecordingFile = ""
	}
	return nil
}

// HealthCheck verifies ffmpeg is resolvable.
func (c *Compressor) HealthCheck(ctx context.Context) stage.Health {
	const name = "video"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	binary := strings.TrimSpace(c.cfg.FFmpegBinary())
	if binary == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg binary %q not found", binary))
	}
	return stage.Healthy(name)
}

func (c *Compressor) ffmpegArgs(input, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(c.cfg.Video.CRF),
		"-preset", c.cfg.Video.Preset,
		"-tune", c.cfg.Video.Tune,
		"-c:a", "aac",
		"-b:a", c.cfg.Video.AudioBitrate,
		"-movflags", "+faststart",
		output,
	}
}
