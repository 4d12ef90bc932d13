package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"easel/internal/config"
)

// Store manages submission persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// ErrConflict indicates a conditional status transition lost a race: the row's
// status no longer matched the expected value.
var ErrConflict = errors.New("submission status changed concurrently")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Add enqueues a new pending submission.
func (s *Store) Add(ctx context.Context, prompt, submitterEmail string, priorityScore int64) (*Submission, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO submissions (
            prompt, submitter_email, priority_score, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		prompt,
		nullableString(strings.TrimSpace(submitterEmail)),
		priorityScore,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a submission by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Submission, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// Update persists changes to an existing submission.
func (s *Store) Update(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return errors.New("submission is nil")
	}
	sub.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE submissions
         SET prompt = ?, submitter_email = ?, priority_score = ?, status = ?,
             artwork_id = ?, image_file = ?, transcript_file = ?, recording_file = ?,
             compressed_file = ?, title = ?, artist_statement = ?, image_url = ?,
             video_url = ?, artwork_url = ?, error_message = ?, progress_stage = ?,
             progress_percent = ?, progress_message = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		sub.Prompt,
		nullableString(sub.SubmitterEmail),
		sub.PriorityScore,
		sub.Status,
		nullableString(sub.ArtworkID),
		nullableString(sub.ImageFile),
		nullableString(sub.TranscriptFile),
		nullableString(sub.RecordingFile),
		nullableString(sub.CompressedFile),
		nullableString(sub.Title),
		nullableString(sub.ArtistStatement),
		nullableString(sub.ImageURL),
		nullableString(sub.VideoURL),
		nullableString(sub.ArtworkURL),
		nullableString(sub.ErrorMessage),
		nullableString(sub.ProgressStage),
		sub.ProgressPercent,
		nullableString(sub.ProgressMessage),
		nullableTime(sub.LastHeartbeat),
		sub.UpdatedAt.Format(time.RFC3339Nano),
		sub.ID,
	); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

// List returns submissions filtered by status set (or all when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Submission, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + submissionColumns + ` FROM submissions`
	orderClause := ` ORDER BY priority_score DESC, created_at ASC, id ASC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// NextForStatuses returns the next submission to claim among the provided
// statuses. The argument order is a preference ranking: a submission whose
// status appears earlier in the list wins regardless of priority, so in-flight
// work listed first can never be preempted by a freshly queued high-priority
// row. Priority, then age, break ties within the same status.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Submission, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, 0, len(statuses)*3)
	for _, status := range statuses {
		args = append(args, status)
	}

	var rank strings.Builder
	rank.WriteString("CASE status")
	for i, status := range statuses {
		rank.WriteString(" WHEN ? THEN ?")
		args = append(args, status, i)
	}
	rank.WriteString(" ELSE ")
	rank.WriteString(strconv.Itoa(len(statuses)))
	rank.WriteString(" END")

	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE status IN (` + placeholders + `)
        ORDER BY ` + rank.String() + `, priority_score DESC, created_at ASC, id ASC LIMIT 1`
	row := s.db.QueryRowContext(ensureContext(ctx), query, args...)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// TransitionStatus performs the conditional acquire: the row moves from the
// expected status to the new one only if nothing else transitioned it first.
// A lost race returns ErrConflict. Transitions into processing statuses stamp
// a fresh heartbeat.
func (s *Store) TransitionStatus(ctx context.Context, sub *Submission, from, to Status) error {
	if sub == nil {
		return errors.New("submission is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var heartbeat any
	if IsProcessingStatus(to) {
		heartbeat = timestamp
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE submissions
         SET status = ?, last_heartbeat = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		to,
		heartbeat,
		timestamp,
		sub.ID,
		from,
	)
	if err != nil {
		return fmt.Errorf("transition submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}

	sub.Status = to
	sub.ErrorMessage = ""
	sub.UpdatedAt = now
	if IsProcessingStatus(to) {
		hb := now
		sub.LastHeartbeat = &hb
	} else {
		sub.LastHeartbeat = nil
	}
	return nil
}

// Stats returns a count of submissions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		default:
			if IsProcessingStatus(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Remove deletes a submission by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all submissions from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM submissions`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed submissions from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM submissions WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed submissions from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM submissions WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

const submissionColumns = "id, prompt, submitter_email, priority_score, status, artwork_id, image_file, transcript_file, recording_file, compressed_file, title, artist_statement, image_url, video_url, artwork_url, error_message, progress_stage, progress_percent, progress_message, last_heartbeat, created_at, updated_at"

func scanSubmission(scanner interface{ Scan(dest ...any) error }) (*Submission, error) {
	var (
		id               int64
		prompt           string
		submitterEmail   sql.NullString
		priorityScore    sql.NullInt64
		statusStr        string
		artworkID        sql.NullString
		imageFile        sql.NullString
		transcriptFile   sql.NullString
		recordingFile    sql.NullString
		compressedFile   sql.NullString
		title            sql.NullString
		artistStatement  sql.NullString
		imageURL         sql.NullString
		videoURL         sql.NullString
		artworkURL       sql.NullString
		errorMessage     sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&prompt,
		&submitterEmail,
		&priorityScore,
		&statusStr,
		&artworkID,
		&imageFile,
		&transcriptFile,
		&recordingFile,
		&compressedFile,
		&title,
		&artistStatement,
		&imageURL,
		&videoURL,
		&artworkURL,
		&errorMessage,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sub := &Submission{
		ID:              id,
		Prompt:          prompt,
		SubmitterEmail:  submitterEmail.String,
		PriorityScore:   priorityScore.Int64,
		Status:          Status(statusStr),
		ArtworkID:       artworkID.String,
		ImageFile:       imageFile.String,
		TranscriptFile:  transcriptFile.String,
		RecordingFile:   recordingFile.String,
		CompressedFile:  compressedFile.String,
		Title:           title.String,
		ArtistStatement: artistStatement.String,
		ImageURL:        imageURL.String,
		VideoURL:        videoURL.String,
		ArtworkURL:      artworkURL.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		sub.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sub.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			sub.LastHeartbeat = &heartbeat
		}
	}
	return sub, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
