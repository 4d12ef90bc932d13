package publisher

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/services/gallery"
)

type fakeStorage struct {
	uploads  map[string]string // key -> content type
	contents map[string][]byte
	fail     bool
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if f.fail {
		return "", errors.New("socket reset")
	}
	if f.uploads == nil {
		f.uploads = make(map[string]string)
		f.contents = make(map[string][]byte)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.uploads[key] = contentType
	f.contents[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeStorage) GetPublicURL(key string) string { return "https://cdn.example.com/" + key }

type fakeGallery struct {
	lastRecord gallery.Record
	url        string
	err        error
}

func (f *fakeGallery) Upsert(ctx context.Context, record gallery.Record) (string, error) {
	f.lastRecord = record
	return f.url, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.RecordingsDir = filepath.Join(base, "recordings")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("artifact-bytes"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestUploaderUploadsAndDeletesLocalFiles(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Join(cfg.Paths.StagingDir, "submission-40")
	image := writeArtifact(t, dir, "easel-40.png")
	video := writeArtifact(t, dir, "easel-40.mp4")
	transcript := writeArtifact(t, dir, "easel-40.transcript.json")

	fs := &fakeStorage{}
	u := NewUploaderWithClient(cfg, nil, logging.NewNop(), fs)
	sub := &queue.Submission{
		ID:             40,
		ArtworkID:      "easel-40",
		Prompt:         "a fox at dusk",
		Title:          "Vulpine Study",
		ImageFile:      image,
		CompressedFile: video,
		TranscriptFile: transcript,
	}

	if err := u.Prepare(context.Background(), sub); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := u.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if sub.ImageURL != "https://cdn.example.com/artworks/easel-40/image.png" {
		t.Fatalf("unexpected image url %q", sub.ImageURL)
	}
	if sub.VideoURL != "https://cdn.example.com/artworks/easel-40/video.mp4" {
		t.Fatalf("unexpected video url %q", sub.VideoURL)
	}
	if ct := fs.uploads["artworks/easel-40/image.png"]; ct != "image/png" {
		t.Fatalf("unexpected image content type %q", ct)
	}
	if ct := fs.uploads["artworks/easel-40/video.mp4"]; ct != "video/mp4" {
		t.Fatalf("unexpected video content type %q", ct)
	}
	if ct := fs.uploads["artworks/easel-40/transcript.json"]; ct != "application/json" {
		t.Fatalf("unexpected transcript content type %q", ct)
	}
	if ct := fs.uploads["artworks/easel-40/metadata.json"]; ct != "application/json" {
		t.Fatalf("unexpected metadata content type %q", ct)
	}
	metaDoc := string(fs.contents["artworks/easel-40/metadata.json"])
	if !strings.Contains(metaDoc, `"title":"Vulpine Study"`) {
		t.Fatalf("expected title in metadata document, got %s", metaDoc)
	}
	if !strings.Contains(metaDoc, `"artwork_id":"easel-40"`) {
		t.Fatalf("expected artwork id in metadata document, got %s", metaDoc)
	}

	for _, path := range []string{image, video, transcript} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s deleted after upload, stat err=%v", path, err)
		}
	}
}

func TestUploaderKeepsFilesOnFailure(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Join(cfg.Paths.StagingDir, "submission-41")
	image := writeArtifact(t, dir, "easel-41.png")

	fs := &fakeStorage{fail: true}
	u := NewUploaderWithClient(cfg, nil, logging.NewNop(), fs)
	sub := &queue.Submission{ID: 41, ArtworkID: "easel-41", ImageFile: image}

	err := u.Execute(context.Background(), sub)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if _, statErr := os.Stat(image); statErr != nil {
		t.Fatalf("image must survive a failed upload, stat err=%v", statErr)
	}
}

func TestUploaderRequiresImage(t *testing.T) {
	cfg := testConfig(t)
	u := NewUploaderWithClient(cfg, nil, logging.NewNop(), &fakeStorage{})
	sub := &queue.Submission{ID: 42, ArtworkID: "easel-42"}

	err := u.Execute(context.Background(), sub)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploaderSkipsWhenStorageDisabled(t *testing.T) {
	cfg := testConfig(t)
	u := NewUploaderWithClient(cfg, nil, logging.NewNop(), nil)
	sub := &queue.Submission{ID: 43, ArtworkID: "easel-43", ImageFile: "/tmp/easel-43.png"}

	if err := u.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sub.ImageURL != "" {
		t.Fatalf("expected no image url when storage disabled, got %q", sub.ImageURL)
	}
}

func TestPublisherUpsertsRecord(t *testing.T) {
	cfg := testConfig(t)
	fg := &fakeGallery{url: "https://gallery.example.com/artworks/easel-44"}
	p := NewPublisherWithDependencies(cfg, nil, logging.NewNop(), fg, nil)

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sub := &queue.Submission{
		ID:              44,
		ArtworkID:       "easel-44",
		Prompt:          "a fox",
		Title:           "Vulpine Study",
		ArtistStatement: "I chased the last light.",
		ImageURL:        "https://cdn.example.com/artworks/easel-44/image.png",
		VideoURL:        "https://cdn.example.com/artworks/easel-44/video.mp4",
		CreatedAt:       created,
	}

	if err := p.Prepare(context.Background(), sub); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := p.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sub.ArtworkURL != fg.url {
		t.Fatalf("unexpected artwork url %q", sub.ArtworkURL)
	}
	if fg.lastRecord.Title != "Vulpine Study" || fg.lastRecord.Prompt != "a fox" {
		t.Fatalf("unexpected record %+v", fg.lastRecord)
	}
	if fg.lastRecord.CreatedAt != "2026-08-01T12:00:00Z" {
		t.Fatalf("unexpected created_at %q", fg.lastRecord.CreatedAt)
	}
}

func TestPublisherDefaultsUntitled(t *testing.T) {
	cfg := testConfig(t)
	fg := &fakeGallery{url: "https://gallery.example.com/artworks/easel-45"}
	p := NewPublisherWithDependencies(cfg, nil, logging.NewNop(), fg, nil)

	sub := &queue.Submission{ID: 45, ArtworkID: "easel-45", Prompt: "a fox"}
	if err := p.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if fg.lastRecord.Title != "(untitled)" {
		t.Fatalf("expected untitled fallback, got %q", fg.lastRecord.Title)
	}
}

func TestPublisherWrapsUpsertFailure(t *testing.T) {
	cfg := testConfig(t)
	fg := &fakeGallery{err: errors.New("service unavailable")}
	p := NewPublisherWithDependencies(cfg, nil, logging.NewNop(), fg, nil)

	sub := &queue.Submission{ID: 46, ArtworkID: "easel-46"}
	err := p.Execute(context.Background(), sub)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(err.Error(), "publish") {
		t.Fatalf("expected publish context in error, got %v", err)
	}
}

func TestContentTypeFor(t *testing.T) {
	if ct := contentTypeFor("a.PNG"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if ct := contentTypeFor("a.bin"); ct != "application/octet-stream" {
		t.Fatalf("unexpected fallback %q", ct)
	}
}
