package curator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services/llm"
	"easel/internal/stage"
)

const (
	// FallbackTitle is used when no usable title can be extracted.
	FallbackTitle = "(untitled)"
	// FallbackStatement is used when no usable statement can be extracted.
	FallbackStatement = "(no artist statement)"

	maxTitleLength       = 120
	maxStatementLength   = 600
	maxTranscriptExcerpt = 6000
)

const metadataSystemPrompt = `You are an art curator naming a freshly drawn digital artwork.
You receive the request prompt and a transcript of the drawing session.
Respond with JSON only: {"title": "...", "artist_statement": "..."}.
The title is at most eight words. The artist statement is one or two
sentences in the first person, as the artist describing the piece.`

// MetadataClient is the slice of the LLM client the curator uses.
type MetadataClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Metadata is the curated presentation data for an artwork.
type Metadata struct {
	Title           string `json:"title"`
	ArtistStatement string `json:"artist_statement"`
}

// Curator extracts title and artist statement for a drawn artwork.
type Curator struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	client MetadataClient
	titler cases.Caser
}

// New constructs the metadata extraction handler.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Curator {
	var client MetadataClient
	if strings.TrimSpace(cfg.Metadata.APIKey) != "" {
		client = llm.NewClient(llm.Config{
			APIKey:         cfg.Metadata.APIKey,
			BaseURL:        cfg.Metadata.BaseURL,
			Model:          cfg.Metadata.Model,
			Title:          "Easel",
			TimeoutSeconds: cfg.Metadata.TimeoutSeconds,
		})
	}
	return NewWithClient(cfg, store, logger, client)
}

// NewWithClient allows injecting a custom metadata client (used for tests).
func NewWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client MetadataClient) *Curator {
	c := &Curator{cfg: cfg, store: store, client: client, titler: cases.Title(language.English)}
	c.SetLogger(logger)
	return c
}

// SetLogger updates the handler's logging destination.
func (c *Curator) SetLogger(logger *slog.Logger) {
	c.logger = logging.NewComponentLogger(logger, "curator")
}

func (c *Curator) Prepare(ctx context.Context, sub *queue.Submission) error {
	sub.InitProgress("Extracting", "Extracting artwork metadata")
	return nil
}

func (c *Curator) Execute(ctx context.Context, sub *queue.Submission) error {
	logger := logging.WithContext(ctx, c.logger)

	meta, err := c.extract(ctx, sub, logger)
	if err != nil {
		return err
	}

	sub.Title = meta.Title
	sub.ArtistStatement = meta.ArtistStatement
	sub.SetProgressComplete("Extracting", fmt.Sprintf("Titled %q", meta.Title))
	logger.Info("metadata extracted",
		logging.String(logging.FieldArtworkID, sub.ArtworkID),
		logging.String("title", meta.Title))
	return nil
}

func (c *Curator) extract(ctx context.Context, sub *queue.Submission, logger *slog.Logger) (Metadata, error) {
	fallback := Metadata{Title: FallbackTitle, ArtistStatement: FallbackStatement}
	if c.client == nil {
		logger.Info("metadata extraction disabled; using fallback")
		return fallback, nil
	}

	userPrompt := c.buildUserPrompt(sub, logger)
	content, err := c.client.CompleteJSON(ctx, metadataSystemPrompt, userPrompt)
	if err != nil {
		// Metadata is presentation polish, not pipeline substance: a dead or
		// rate-limited extraction service degrades to fallback text instead
		// of failing the artwork. Shutdown still interrupts the stage.
		if ctx.Err() != nil {
			return Metadata{}, ctx.Err()
		}
		logger.Warn("metadata extraction failed; using fallback", logging.Error(err))
		return fallback, nil
	}

	var meta Metadata
	if err := llm.DecodeLLMJSON(content, &meta); err != nil {
		logger.Warn("unparseable metadata payload; using fallback", logging.Error(err))
		return fallback, nil
	}
	return c.normalize(meta), nil
}

func (c *Curator) buildUserPrompt(sub *queue.Submission, logger *slog.Logger) string {
	var builder strings.Builder
	builder.WriteString("Request prompt:\n")
	builder.WriteString(strings.TrimSpace(sub.Prompt))

	if path := strings.TrimSpace(sub.TranscriptFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("transcript unreadable; extracting from prompt alone",
				logging.String("path", path), logging.Error(err))
		} else {
			excerpt := string(data)
			if len(excerpt) > maxTranscriptExcerpt {
				excerpt = excerpt[:maxTranscriptExcerpt]
			}
			builder.WriteString("\n\nDrawing session transcript:\n")
			builder.WriteString(excerpt)
		}
	}
	return builder.String()
}

func (c *Curator) normalize(meta Metadata) Metadata {
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = FallbackTitle
	} else {
		title = c.titler.String(title)
		if len(title) > maxTitleLength {
			title = strings.TrimSpace(title[:maxTitleLength])
		}
	}

	statement := strings.TrimSpace(meta.ArtistStatement)
	if statement == "" {
		statement = FallbackStatement
	} else if len(statement) > maxStatementLength {
		statement = strings.TrimSpace(statement[:maxStatementLength])
	}

	return Metadata{Title: title, ArtistStatement: statement}
}

// HealthCheck verifies metadata extraction configuration.
func (c *Curator) HealthCheck(ctx context.Context) stage.Health {
	const name = "curator"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if c.client == nil {
		return stage.Healthy(name)
	}
	if strings.TrimSpace(c.cfg.Metadata.Model) == "" {
		return stage.Unhealthy(name, "metadata model not configured")
	}
	return stage.Healthy(name)
}
