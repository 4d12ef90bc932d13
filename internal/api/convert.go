package api

import (
	"slices"
	"strings"

	"easel/internal/queue"
	"easel/internal/workflow"
)

// FromSubmission converts a queue record to its API representation.
func FromSubmission(sub *queue.Submission) Submission {
	if sub == nil {
		return Submission{}
	}

	dto := Submission{
		ID:              sub.ID,
		Prompt:          sub.Prompt,
		SubmitterEmail:  sub.SubmitterEmail,
		PriorityScore:   sub.PriorityScore,
		Status:          string(sub.Status),
		ProcessingLane:  string(queue.LaneForStatus(sub.Status)),
		ArtworkID:       sub.ArtworkID,
		Title:           sub.Title,
		ArtistStatement: sub.ArtistStatement,
		ImageURL:        sub.ImageURL,
		VideoURL:        sub.VideoURL,
		ArtworkURL:      sub.ArtworkURL,
		Progress: SubmissionProgress{
			Stage:   sub.ProgressStage,
			Percent: sub.ProgressPercent,
			Message: sub.ProgressMessage,
		},
		ErrorMessage: sub.ErrorMessage,
	}
	if !sub.CreatedAt.IsZero() {
		dto.CreatedAt = sub.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !sub.UpdatedAt.IsZero() {
		dto.UpdatedAt = sub.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromSubmissions converts a slice of queue records.
func FromSubmissions(subs []*queue.Submission) []Submission {
	if len(subs) == 0 {
		return nil
	}
	out := make([]Submission, 0, len(subs))
	for _, sub := range subs {
		out = append(out, FromSubmission(sub))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics to the API shape.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:    summary.Running,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
	}
	if summary.LastSubmission != nil {
		dto := FromSubmission(summary.LastSubmission)
		status.LastSubmission = &dto
	}
	status.StageHealth = make([]StageHealth, 0, len(summary.StageHealth))
	for name, health := range summary.StageHealth {
		label := strings.TrimSpace(health.Name)
		if label == "" {
			label = name
		}
		status.StageHealth = append(status.StageHealth, StageHealth{
			Name:   label,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	slices.SortFunc(status.StageHealth, func(a, b StageHealth) int {
		return strings.Compare(a.Name, b.Name)
	})
	return status
}

// MergeQueueStats produces string-keyed counts with every known status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	merged := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		merged[string(status)] = stats[status]
	}
	return merged
}
