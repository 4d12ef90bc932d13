package painter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

var commandContext = exec.CommandContext

// ProgressUpdate captures painter progress events.
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Message string
}

// Request describes a drawing session.
type Request struct {
	Prompt    string
	ArtworkID string
	OutputDir string
	CDPURL    string
	CanvasURL string
}

// Result holds the artifacts a completed session produced.
type Result struct {
	ImagePath      string
	TranscriptPath string
}

// Client defines painter session behaviour.
type Client interface {
	Draw(ctx context.Context, req Request, progress func(ProgressUpdate)) (*Result, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the painter command-line agent that drives the browser canvas.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "painter"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Draw launches a painter session and returns the artifact paths. Progress
// lines on stdout are JSON; anything unparseable is ignored. The session is
// bounded by ctx, so callers set the session timeout there.
func (c *CLI) Draw(ctx context.Context, req Request, progress func(ProgressUpdate)) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt required")
	}
	if strings.TrimSpace(req.ArtworkID) == "" {
		return nil, errors.New("artwork id required")
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return nil, errors.New("output directory required")
	}

	result := &Result{
		ImagePath:      filepath.Join(outputDir, req.ArtworkID+".png"),
		TranscriptPath: filepath.Join(outputDir, req.ArtworkID+".transcript.json"),
	}

	args := []string{
		"draw",
		"--prompt", req.Prompt,
		"--artwork-id", req.ArtworkID,
		"--output-dir", outputDir,
		"--progress-json",
	}
	if req.CDPURL != "" {
		args = append(args, "--cdp-url", req.CDPURL)
	}
	if req.CanvasURL != "" {
		args = append(args, "--canvas-url", req.CanvasURL)
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start painter: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		var payload struct {
			Percent float64 `json:"percent"`
			Stage   string  `json:"stage"`
			Message string  `json:"message"`
		}
		if err := json.Unmarshal(line, &payload); err != nil {
			continue
		}
		if progress != nil {
			progress(ProgressUpdate{Percent: payload.Percent, Stage: payload.Stage, Message: payload.Message})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read painter output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("painter session aborted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("painter session failed: %w", err)
	}

	return result, nil
}

var _ Client = (*CLI)(nil)
