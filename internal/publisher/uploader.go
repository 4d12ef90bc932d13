package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/services/storage"
	"easel/internal/stage"
)

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".json": "application/json",
}

// artworkMetadata is the sidecar document stored next to the artifacts, so
// the bucket is self-describing without the queue database.
type artworkMetadata struct {
	ArtworkID       string `json:"artwork_id"`
	Prompt          string `json:"prompt"`
	Title           string `json:"title"`
	ArtistStatement string `json:"artist_statement"`
	CreatedAt       string `json:"created_at"`
}

// Uploader pushes artifacts to object storage.
type Uploader struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	client storage.Client
}

// NewUploader constructs the upload handler.
func NewUploader(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Uploader, error) {
	var client storage.Client
	if cfg.StorageEnabled() {
		s3, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			return nil, err
		}
		client = s3
	}
	return NewUploaderWithClient(cfg, store, logger, client), nil
}

// NewUploaderWithClient allows injecting a custom storage client (used for tests).
func NewUploaderWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client storage.Client) *Uploader {
	u := &Uploader{cfg: cfg, store: store, client: client}
	u.SetLogger(logger)
	return u
}

// SetLogger updates the handler's logging destination.
func (u *Uploader) SetLogger(logger *slog.Logger) {
	u.logger = logging.NewComponentLogger(logger, "uploader")
}

func (u *Uploader) Prepare(ctx context.Context, sub *queue.Submission) error {
	sub.InitProgress("Uploading", "Uploading artifacts")
	return nil
}

func (u *Uploader) Execute(ctx context.Context, sub *queue.Submission) error {
	logger := logging.WithContext(ctx, u.logger)

	if u.client == nil {
		logger.Info("storage disabled; keeping artifacts local")
		sub.SetProgressComplete("Uploading", "Storage disabled")
		return nil
	}
	if strings.TrimSpace(sub.ArtworkID) == "" {
		return services.Wrap(services.ErrValidation, "upload", "validate",
			"Submission has no artwork id; the drawing stage must run first", nil)
	}

	type artifact struct {
		localPath string
		objectKey string
		setURL    func(url string)
		required  bool
		label     string
	}

	prefix := "artworks/" + sub.ArtworkID
	artifacts := []artifact{
		{
			localPath: sub.ImageFile,
			objectKey: prefix + "/image" + strings.ToLower(filepath.Ext(sub.ImageFile)),
			setURL:    func(url string) { sub.ImageURL = url },
			required:  true,
			label:     "image",
		},
		{
			localPath: sub.CompressedFile,
			objectKey: prefix + "/video" + strings.ToLower(filepath.Ext(sub.CompressedFile)),
			setURL:    func(url string) { sub.VideoURL = url },
			required:  false,
			label:     "video",
		},
		{
			localPath: sub.TranscriptFile,
			objectKey: prefix + "/transcript.json",
			setURL:    nil,
			required:  false,
			label:     "transcript",
		},
	}

	var uploaded []string
	total := len(artifacts)
	for idx, art := range artifacts {
		path := strings.TrimSpace(art.localPath)
		if path == "" {
			if art.required {
				return services.Wrap(services.ErrValidation, "upload", "validate",
					fmt.Sprintf("No %s artifact available to upload", art.label), nil)
			}
			continue
		}

		file, err := os.Open(path)
		if err != nil {
			if art.required {
				return services.Wrap(services.ErrValidation, "upload", "open artifact",
					fmt.Sprintf("The %s artifact is missing from disk", art.label), err)
			}
			logger.Warn("optional artifact missing; skipping",
				logging.String("label", art.label), logging.String("path", path))
			continue
		}

		sub.SetProgress("Uploading", fmt.Sprintf("Uploading %s", art.label), float64(idx)/float64(total)*100)
		if u.store != nil {
			if err := u.store.UpdateProgress(ctx, sub); err != nil {
				logger.Warn("failed to persist upload progress", logging.Error(err))
			}
		}

		url, err := u.client.Upload(ctx, art.objectKey, file, contentTypeFor(path))
		_ = file.Close()
		if err != nil {
			return services.Wrap(services.ErrTransient, "upload", "put object",
				fmt.Sprintf("Failed to upload %s to object storage", art.label), err)
		}
		if art.setURL != nil {
			art.setURL(url)
		}
		uploaded = append(uploaded, path)
		logger.Info("artifact uploaded",
			logging.String("label", art.label),
			logging.String("key", art.objectKey),
			logging.String("url", url))
	}

	meta := artworkMetadata{
		ArtworkID:       sub.ArtworkID,
		Prompt:          strings.TrimSpace(sub.Prompt),
		Title:           sub.Title,
		ArtistStatement: sub.ArtistStatement,
		CreatedAt:       sub.CreatedAt.UTC().Format(time.RFC3339),
	}
	metaBody, err := json.Marshal(meta)
	if err != nil {
		return services.Wrap(services.ErrValidation, "upload", "encode metadata",
			"Failed to encode the artwork metadata document", err)
	}
	metaKey := prefix + "/metadata.json"
	if _, err := u.client.Upload(ctx, metaKey, bytes.NewReader(metaBody), "application/json"); err != nil {
		return services.Wrap(services.ErrTransient, "upload", "put object",
			"Failed to upload the artwork metadata document", err)
	}
	logger.Info("artifact uploaded",
		logging.String("label", "metadata"),
		logging.String("key", metaKey))

	// Local copies go only after every upload has landed, so a mid-batch
	// failure can re-run the stage with all inputs intact.
	for _, path := range uploaded {
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove uploaded artifact", logging.String("path", path), logging.Error(err))
		}
	}
	if len(uploaded) > 0 {
		sub.ImageFile = ""
		sub.CompressedFile = ""
		sub.TranscriptFile = ""
	}

	sub.SetProgressComplete("Uploading", "Artifacts uploaded")
	return nil
}

// HealthCheck verifies storage configuration.
func (u *Uploader) HealthCheck(ctx context.Context) stage.Health {
	const name = "uploader"
	if u.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if u.client == nil {
		return stage.Healthy(name)
	}
	if strings.TrimSpace(u.cfg.Storage.Bucket) == "" {
		return stage.Unhealthy(name, "storage bucket not configured")
	}
	return stage.Healthy(name)
}

func contentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
