package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Submission describes a queue entry in a transport-friendly format.
type Submission struct {
	ID              int64              `json:"id"`
	Prompt          string             `json:"prompt"`
	SubmitterEmail  string             `json:"submitterEmail,omitempty"`
	PriorityScore   int64              `json:"priorityScore"`
	Status          string             `json:"status"`
	ProcessingLane  string             `json:"processingLane"`
	ArtworkID       string             `json:"artworkId,omitempty"`
	Title           string             `json:"title,omitempty"`
	ArtistStatement string             `json:"artistStatement,omitempty"`
	ImageURL        string             `json:"imageUrl,omitempty"`
	VideoURL        string             `json:"videoUrl,omitempty"`
	ArtworkURL      string             `json:"artworkUrl,omitempty"`
	Progress        SubmissionProgress `json:"progress"`
	ErrorMessage    string             `json:"errorMessage,omitempty"`
	CreatedAt       string             `json:"createdAt,omitempty"`
	UpdatedAt       string             `json:"updatedAt,omitempty"`
}

// SubmissionProgress captures stage progress information for a queue entry.
type SubmissionProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running        bool           `json:"running"`
	QueueStats     map[string]int `json:"queueStats"`
	LastError      string         `json:"lastError,omitempty"`
	LastSubmission *Submission    `json:"lastSubmission,omitempty"`
	StageHealth    []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// QueueListResponse wraps a collection of submissions for API responses.
type QueueListResponse struct {
	Submissions []Submission `json:"submissions"`
}

// SubmissionResponse wraps a single submission payload.
type SubmissionResponse struct {
	Submission Submission `json:"submission"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueAddRequest enqueues a new drawing request.
type QueueAddRequest struct {
	Prompt         string `json:"prompt"`
	SubmitterEmail string `json:"submitterEmail,omitempty"`
	Priority       int64  `json:"priority,omitempty"`
}
