package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"easel/internal/config"
)

const userAgent = "Easel/0.1.0"

// Event identifies a notification moment in the workflow.
type Event string

const (
	EventSessionStarted   Event = "session_started"
	EventArtworkCaptured  Event = "artwork_captured"
	EventArtworkPublished Event = "artwork_published"
	EventQueueStarted     Event = "queue_started"
	EventQueueCompleted   Event = "queue_completed"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event-specific fields used to format the message.
type Payload map[string]string

// Service publishes operator notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		artworkEvents: cfg.Notifications.Artwork,
		queueEvents:   cfg.Notifications.Queue,
		errorEvents:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	artworkEvents bool
	queueEvents   bool
	errorEvents   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if payload == nil {
		payload = Payload{}
	}
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }

	switch event {
	case EventSessionStarted:
		if !n.artworkEvents {
			return message{}, false
		}
		prompt := get("prompt")
		if len(prompt) > 120 {
			prompt = prompt[:117] + "..."
		}
		return message{
			title: "Easel - Session Started",
			body:  fmt.Sprintf("🎨 Drawing %s: %s", get("artworkId"), prompt),
			tags:  []string{"easel", "session", "started"},
		}, true
	case EventArtworkCaptured:
		if !n.artworkEvents {
			return message{}, false
		}
		return message{
			title: "Easel - Captured",
			body:  fmt.Sprintf("🎥 Recording captured: %s", get("artworkId")),
			tags:  []string{"easel", "capture", "completed"},
		}, true
	case EventArtworkPublished:
		if !n.artworkEvents {
			return message{}, false
		}
		body := fmt.Sprintf("✅ Published: %s", get("title"))
		if url := get("artworkUrl"); url != "" {
			body = fmt.Sprintf("%s\n%s", body, url)
		}
		return message{
			title:    "Easel - Published",
			body:     body,
			tags:     []string{"easel", "gallery", "published"},
			priority: "high",
		}, true
	case EventQueueStarted:
		if !n.queueEvents {
			return message{}, false
		}
		return message{
			title: "Easel - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %s submissions", get("count")),
			tags:  []string{"easel", "queue", "started"},
		}, true
	case EventQueueCompleted:
		if !n.queueEvents {
			return message{}, false
		}
		var body string
		var title string
		if get("failed") == "" || get("failed") == "0" {
			title = "Easel - Queue Complete"
			body = fmt.Sprintf("Queue processing complete: %s submissions processed in %s", get("processed"), get("duration"))
		} else {
			title = "Easel - Queue Complete (with errors)"
			body = fmt.Sprintf("Queue processing complete: %s succeeded, %s failed in %s", get("processed"), get("failed"), get("duration"))
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"easel", "queue", "completed"},
		}, true
	case EventError:
		if !n.errorEvents {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if contextLabel := get("context"); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if errText := get("error"); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Easel - Error",
			body:     builder.String(),
			tags:     []string{"easel", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Easel - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"easel", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
