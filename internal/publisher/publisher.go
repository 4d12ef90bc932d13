package publisher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/notifications"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/services/gallery"
	"easel/internal/stage"
)

// GalleryClient is the slice of the gallery API the publish stage uses.
type GalleryClient interface {
	Upsert(ctx context.Context, record gallery.Record) (string, error)
}

// Publisher upserts the gallery record for a finished artwork.
type Publisher struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	client   GalleryClient
	notifier notifications.Service
}

// NewPublisher constructs the publish handler.
func NewPublisher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Publisher {
	var client GalleryClient
	if cfg.GalleryEnabled() {
		client = gallery.NewClient(cfg.Gallery.BaseURL, cfg.Gallery.ArtworkBaseURL, cfg.Gallery.APIToken)
	}
	return NewPublisherWithDependencies(cfg, store, logger, client, notifications.NewService(cfg))
}

// NewPublisherWithDependencies allows injecting custom dependencies (used for tests).
func NewPublisherWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client GalleryClient, notifier notifications.Service) *Publisher {
	p := &Publisher{cfg: cfg, store: store, client: client, notifier: notifier}
	p.SetLogger(logger)
	return p
}

// SetLogger updates the handler's logging destination.
func (p *Publisher) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "publisher")
}

func (p *Publisher) Prepare(ctx context.Context, sub *queue.Submission) error {
	sub.InitProgress("Publishing", "Publishing to gallery")
	return nil
}

func (p *Publisher) Execute(ctx context.Context, sub *queue.Submission) error {
	logger := logging.WithContext(ctx, p.logger)

	if p.client == nil {
		logger.Info("gallery disabled; skipping publish")
		sub.SetProgressComplete("Publishing", "Gallery disabled")
		return nil
	}
	if strings.TrimSpace(sub.ArtworkID) == "" {
		return services.Wrap(services.ErrValidation, "publish", "validate",
			"Submission has no artwork id; the drawing stage must run first", nil)
	}

	title := strings.TrimSpace(sub.Title)
	if title == "" {
		title = "(untitled)"
	}

	record := gallery.Record{
		ArtworkID:       sub.ArtworkID,
		Title:           title,
		ArtistStatement: sub.ArtistStatement,
		Prompt:          sub.Prompt,
		ImageURL:        sub.ImageURL,
		VideoURL:        sub.VideoURL,
		CreatedAt:       sub.CreatedAt.UTC().Format(time.RFC3339),
	}

	artworkURL, err := p.client.Upsert(ctx, record)
	if err != nil {
		return services.Wrap(services.ErrTransient, "publish", "upsert",
			"Failed to publish the artwork record to the gallery", err)
	}

	sub.ArtworkURL = artworkURL
	sub.SetProgressComplete("Publishing", "Published to gallery")
	logger.Info("artwork published",
		logging.String(logging.FieldArtworkID, sub.ArtworkID),
		logging.String("artwork_url", artworkURL))

	if p.notifier != nil {
		if err := p.notifier.Publish(ctx, notifications.EventArtworkPublished, notifications.Payload{
			"title":      title,
			"artworkUrl": artworkURL,
		}); err != nil {
			logger.Warn("publish notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies gallery configuration.
func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	const name = "publisher"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if p.client == nil {
		return stage.Healthy(name)
	}
	if strings.TrimSpace(p.cfg.Gallery.BaseURL) == "" {
		return stage.Unhealthy(name, "gallery base url not configured")
	}
	return stage.Healthy(name)
}
