package notify

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services/mailer"
	"easel/internal/stage"
)

// Mailer is the slice of the mail client the notify stage uses.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

var emailTemplate = template.Must(template.New("published").Parse(`<p>Your artwork is ready.</p>
<p><strong>{{.Title}}</strong></p>
{{if .ArtistStatement}}<p><em>{{.ArtistStatement}}</em></p>{{end}}
{{if .ArtworkURL}}<p><a href="{{.ArtworkURL}}">View it in the gallery</a></p>{{end}}
{{if .ImageURL}}<p><img src="{{.ImageURL}}" alt="{{.Title}}" width="480"/></p>{{end}}
<p>Prompt: {{.Prompt}}</p>`))

// Notifier emails the submitter once their artwork is published.
type Notifier struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	client Mailer
}

// New constructs the notify handler.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Notifier {
	var client Mailer
	if cfg.MailerEnabled() {
		client = mailer.NewClient(cfg.Mailer.BaseURL, cfg.Mailer.APIKey)
	}
	return NewWithMailer(cfg, store, logger, client)
}

// NewWithMailer allows injecting a custom mail client (used for tests).
func NewWithMailer(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Mailer) *Notifier {
	n := &Notifier{cfg: cfg, store: store, client: client}
	n.SetLogger(logger)
	return n
}

// SetLogger updates the handler's logging destination.
func (n *Notifier) SetLogger(logger *slog.Logger) {
	n.logger = logging.NewComponentLogger(logger, "notify")
}

func (n *Notifier) Prepare(ctx context.Context, sub *queue.Submission) error {
	sub.InitProgress("Notifying", "Emailing submitter")
	return nil
}

// Execute sends the published email. It always returns nil: notification is
// best-effort and never fails a submission.
func (n *Notifier) Execute(ctx context.Context, sub *queue.Submission) error {
	logger := logging.WithContext(ctx, n.logger)

	recipient := strings.TrimSpace(sub.SubmitterEmail)
	switch {
	case n.client == nil:
		logger.Info("mailer disabled; skipping submitter email")
		sub.SetProgressComplete("Notifying", "Mailer disabled")
		return nil
	case recipient == "":
		logger.Info("submission has no email; skipping submitter email")
		sub.SetProgressComplete("Notifying", "No submitter email")
		return nil
	}

	title := strings.TrimSpace(sub.Title)
	if title == "" {
		title = "(untitled)"
	}

	var body strings.Builder
	if err := emailTemplate.Execute(&body, map[string]string{
		"Title":           title,
		"ArtistStatement": sub.ArtistStatement,
		"ArtworkURL":      sub.ArtworkURL,
		"ImageURL":        sub.ImageURL,
		"Prompt":          sub.Prompt,
	}); err != nil {
		logger.Warn("failed to render email body", logging.Error(err))
		sub.SetProgressComplete("Notifying", "Email skipped")
		return nil
	}

	siteName := strings.TrimSpace(n.cfg.Mailer.SiteName)
	if siteName == "" {
		siteName = "Easel"
	}
	msg := mailer.Message{
		From:    n.cfg.Mailer.From,
		To:      []string{recipient},
		Subject: fmt.Sprintf("%s drew your artwork: %s", siteName, title),
		HTML:    body.String(),
	}

	if err := n.client.Send(ctx, msg); err != nil {
		logger.Warn("submitter email failed; continuing",
			logging.String("recipient", recipient), logging.Error(err))
		sub.SetProgressComplete("Notifying", "Email failed")
		return nil
	}

	logger.Info("submitter emailed", logging.String("recipient", recipient))
	sub.SetProgressComplete("Notifying", "Submitter emailed")
	return nil
}

// HealthCheck verifies mailer configuration.
func (n *Notifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "notify"
	if n.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if n.client == nil {
		return stage.Healthy(name)
	}
	if strings.TrimSpace(n.cfg.Mailer.From) == "" {
		return stage.Unhealthy(name, "mailer sender not configured")
	}
	return stage.Healthy(name)
}
