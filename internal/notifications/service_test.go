package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"easel/internal/config"
	"easel/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventArtworkPublished, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "session started",
			event: notifications.EventSessionStarted,
			payload: notifications.Payload{
				"artworkId": "easel-1700000000",
				"prompt":    "a fox in watercolor",
			},
			expectTitle:   "Easel - Session Started",
			expectMessage: "🎨 Drawing easel-1700000000: a fox in watercolor",
			expectTags:    "easel,session,started",
		},
		{
			name:  "artwork captured",
			event: notifications.EventArtworkCaptured,
			payload: notifications.Payload{
				"artworkId": "easel-1700000000",
			},
			expectTitle:   "Easel - Captured",
			expectMessage: "🎥 Recording captured: easel-1700000000",
			expectTags:    "easel,capture,completed",
		},
		{
			name:  "artwork published",
			event: notifications.EventArtworkPublished,
			payload: notifications.Payload{
				"title":      "Vulpine Study",
				"artworkUrl": "https://gallery.example.com/artworks/easel-1700000000",
			},
			expectTitle:    "Easel - Published",
			expectMessage:  "✅ Published: Vulpine Study\nhttps://gallery.example.com/artworks/easel-1700000000",
			expectTags:     "easel,gallery,published",
			expectPriority: "high",
		},
		{
			name:  "queue completed with errors",
			event: notifications.EventQueueCompleted,
			payload: notifications.Payload{
				"processed": "3",
				"failed":    "1",
				"duration":  "12m30s",
			},
			expectTitle:   "Easel - Queue Complete (with errors)",
			expectMessage: "Queue processing complete: 3 succeeded, 1 failed in 12m30s",
			expectTags:    "easel,queue,completed",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "compress",
				"error":   "ffmpeg exited with status 1",
			},
			expectTitle:    "Easel - Error",
			expectMessage:  "❌ Error with compress: ffmpeg exited with status 1",
			expectTags:     "easel,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsSuppressionToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Artwork = false
	cfg.Notifications.Queue = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventSessionStarted,
		notifications.EventArtworkCaptured,
		notifications.EventArtworkPublished,
		notifications.EventQueueStarted,
		notifications.EventQueueCompleted,
		notifications.EventError,
	}

	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}
