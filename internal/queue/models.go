package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a submission.
type Status string

const (
	StatusPending        Status = "pending"
	StatusRecordStarting Status = "record_starting"
	StatusRecording      Status = "recording"
	StatusDrawing        Status = "drawing"
	StatusDrawn          Status = "drawn"
	StatusRecordStopping Status = "record_stopping"
	StatusCaptured       Status = "captured"
	StatusCompressing    Status = "compressing"
	StatusCompressed     Status = "compressed"
	StatusExtracting     Status = "extracting"
	StatusExtracted      Status = "extracted"
	StatusUploading      Status = "uploading"
	StatusUploaded       Status = "uploaded"
	StatusPublishing     Status = "publishing"
	StatusPublished      Status = "published"
	StatusNotifying      Status = "notifying"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// DaemonStopReason is the error message set when submissions are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusRecordStarting,
	StatusRecording,
	StatusDrawing,
	StatusDrawn,
	StatusRecordStopping,
	StatusCaptured,
	StatusCompressing,
	StatusCompressed,
	StatusExtracting,
	StatusExtracted,
	StatusUploading,
	StatusUploaded,
	StatusPublishing,
	StatusPublished,
	StatusNotifying,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusRecordStarting: {},
	StatusDrawing:        {},
	StatusRecordStopping: {},
	StatusCompressing:    {},
	StatusExtracting:     {},
	StatusUploading:      {},
	StatusPublishing:     {},
	StatusNotifying:      {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map each processing status back to the status that
// precedes its stage, so a reclaimed submission re-runs exactly the
// interrupted stage.
var stageRollbackTransitions = []statusTransition{
	{from: StatusRecordStarting, to: StatusPending},
	{from: StatusDrawing, to: StatusRecording},
	{from: StatusRecordStopping, to: StatusDrawn},
	{from: StatusCompressing, to: StatusCaptured},
	{from: StatusExtracting, to: StatusCompressed},
	{from: StatusUploading, to: StatusExtracted},
	{from: StatusPublishing, to: StatusUploaded},
	{from: StatusNotifying, to: StatusPublished},
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Submission represents a queued artwork request persisted in SQLite.
type Submission struct {
	ID              int64
	Prompt          string
	SubmitterEmail  string
	PriorityScore   int64
	Status          Status
	ArtworkID       string
	ImageFile       string
	TranscriptFile  string
	RecordingFile   string
	CompressedFile  string
	Title           string
	ArtistStatement string
	ImageURL        string
	VideoURL        string
	ArtworkURL      string
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (s *Submission) IsProcessing() bool {
	return IsProcessingStatus(s.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a status is a final outcome.
func IsTerminalStatus(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// InitProgress resets progress fields for a new stage.
func (s *Submission) InitProgress(stage, message string) {
	if s.ProgressStage == "" {
		s.ProgressStage = stage
	}
	s.ProgressMessage = message
	s.ProgressPercent = 0
	s.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
func (s *Submission) SetProgress(stage, message string, percent float64) {
	s.ProgressStage = stage
	s.ProgressMessage = message
	s.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (s *Submission) SetProgressComplete(stage, message string) {
	s.SetProgress(stage, message, 100)
}

// SetFailed marks the submission as failed with the given error message.
// Clears the heartbeat and sets progress fields appropriately.
func (s *Submission) SetFailed(message string) {
	s.Status = StatusFailed
	s.ErrorMessage = message
	s.ProgressPercent = 0
	s.ProgressMessage = message
	s.LastHeartbeat = nil
	s.ProgressStage = "Failed"
}

// ProcessingLane partitions the workflow into the exclusive studio stages and
// post-capture background work.
type ProcessingLane string

const (
	LaneForeground ProcessingLane = "foreground"
	LaneBackground ProcessingLane = "background"
)

var backgroundStatuses = map[Status]struct{}{
	StatusCaptured:    {},
	StatusCompressing: {},
	StatusCompressed:  {},
	StatusExtracting:  {},
	StatusExtracted:   {},
	StatusUploading:   {},
	StatusUploaded:    {},
	StatusPublishing:  {},
	StatusPublished:   {},
	StatusNotifying:   {},
	StatusCompleted:   {},
}

// LaneForStatus maps a status to its processing lane for observability purposes.
func LaneForStatus(status Status) ProcessingLane {
	if _, ok := backgroundStatuses[status]; ok {
		return LaneBackground
	}
	return LaneForeground
}
