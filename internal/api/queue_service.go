package api

import (
	"context"
	"strings"

	"easel/internal/queue"
	"easel/internal/services"
)

// QueueStore abstracts queue persistence interactions needed for API queries.
type QueueStore interface {
	Add(ctx context.Context, prompt, submitterEmail string, priorityScore int64) (*queue.Submission, error)
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Submission, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Submission, error)
}

// QueueService exposes queue operations returning API DTOs.
type QueueService struct {
	store QueueStore
}

// NewQueueService constructs a QueueService around the provided store.
func NewQueueService(store QueueStore) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// Add validates and enqueues a new drawing request.
func (s *QueueService) Add(ctx context.Context, req QueueAddRequest) (*Submission, error) {
	if s == nil || s.store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "queue-add", "queue store unavailable", nil)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "queue-add", "prompt is required", nil)
	}
	sub, err := s.store.Add(ctx, req.Prompt, req.SubmitterEmail, req.Priority)
	if err != nil {
		return nil, err
	}
	dto := FromSubmission(sub)
	return &dto, nil
}

// List returns submissions filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]Submission, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	subs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromSubmissions(subs), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single submission.
func (s *QueueService) Describe(ctx context.Context, id int64) (*Submission, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	sub, err := s.store.GetByID(ctx, id)
	if err != nil || sub == nil {
		return nil, err
	}
	dto := FromSubmission(sub)
	return &dto, nil
}
