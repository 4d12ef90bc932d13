// Package workflow advances submissions through the configured processing
// stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// submissions into registered stage handlers (recording arm, artist, recording
// finisher, compressor, curator, uploader, publisher, notifier) while
// capturing progress and failure metadata. It also aggregates queue stats,
// calls stage health checks, and emits queue-level notifications when
// processing starts or completes.
//
// The workflow runs two independent lanes: foreground (recording arm, drawing
// session, recording finish) and background (compression, metadata
// extraction, upload, publish, submitter email). The foreground lane owns the
// studio — OBS and the painter browser — so at most one submission records at
// a time, while the background lane works on already-captured artifacts in
// parallel.
//
// Each stage execution is wrapped in a retry policy: transient failures get
// their backoff attempts, validation and configuration failures fail the
// submission immediately. Claims go through the queue's conditional status
// transition, so concurrent lanes (or a second process) never run the same
// submission twice.
package workflow
