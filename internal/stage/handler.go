package stage

import (
	"context"

	"easel/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Submission) error
	Execute(context.Context, *queue.Submission) error
	HealthCheck(context.Context) Health
}
