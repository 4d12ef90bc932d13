package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"easel/internal/api"
	"easel/internal/queue"
)

func newTestAPI(t *testing.T, token string) (*apiServer, *queue.Store) {
	t.Helper()
	cfg := newTestConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.APIToken = token
	d, store := newTestDaemon(t, cfg)
	if d.api == nil {
		t.Fatal("expected api server")
	}
	return d.api, store
}

func doRequest(srv *apiServer, method, target, token string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestAPIRequiresBearerToken(t *testing.T) {
	srv, _ := newTestAPI(t, "secret")

	if rec := doRequest(srv, http.MethodGet, "/api/status", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodGet, "/api/status", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodGet, "/api/status", "secret", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	// Health and metrics stay open for probes and scrapers.
	if rec := doRequest(srv, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected open healthz, got %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected open metrics, got %d", rec.Code)
	}
}

func TestAPIQueueLifecycle(t *testing.T) {
	srv, _ := newTestAPI(t, "")

	rec := doRequest(srv, http.MethodPost, "/api/queue", "", `{"prompt":"a lighthouse at dusk","submitterEmail":"a@b.c","priority":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created api.SubmissionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode add response: %v", err)
	}
	if created.Submission.Status != "pending" || created.Submission.PriorityScore != 3 {
		t.Fatalf("unexpected submission %+v", created.Submission)
	}

	rec = doRequest(srv, http.MethodGet, "/api/queue?status=pending", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list api.QueueListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Submissions) != 1 || list.Submissions[0].Prompt != "a lighthouse at dusk" {
		t.Fatalf("unexpected list %+v", list.Submissions)
	}

	rec = doRequest(srv, http.MethodGet, "/api/queue/1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("describe: expected 200, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodDelete, "/api/queue/1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", rec.Code)
	}
	rec = doRequest(srv, http.MethodGet, "/api/queue/1", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("describe removed: expected 404, got %d", rec.Code)
	}
}

func TestAPIQueueAddValidation(t *testing.T) {
	srv, _ := newTestAPI(t, "")

	rec := doRequest(srv, http.MethodPost, "/api/queue", "", `{"prompt":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty prompt, got %d", rec.Code)
	}
	rec = doRequest(srv, http.MethodPost, "/api/queue", "", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", rec.Code)
	}
}

func TestAPIQueueListRejectsUnknownStatus(t *testing.T) {
	srv, _ := newTestAPI(t, "")
	rec := doRequest(srv, http.MethodGet, "/api/queue?status=bogus", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestAPIQueueRetry(t *testing.T) {
	srv, store := newTestAPI(t, "")
	ctx := context.Background()

	sub, err := store.Add(ctx, "a fox", "", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	sub.SetFailed("boom")
	if err := store.Update(ctx, sub); err != nil {
		t.Fatalf("update: %v", err)
	}

	rec := doRequest(srv, http.MethodPost, "/api/queue/1/retry", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d", rec.Code)
	}
	var result map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode retry: %v", err)
	}
	if result["retried"] != 1 {
		t.Fatalf("expected one retried submission, got %+v", result)
	}

	refreshed, err := store.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if refreshed.Status != queue.StatusPending {
		t.Fatalf("expected pending after retry, got %s", refreshed.Status)
	}
}

func TestAPIStatusPayload(t *testing.T) {
	srv, store := newTestAPI(t, "")
	if _, err := store.Add(context.Background(), "a fox", "", 0); err != nil {
		t.Fatalf("add: %v", err)
	}

	rec := doRequest(srv, http.MethodGet, "/api/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon not started; running must be false")
	}
	if status.Workflow.QueueStats["pending"] != 1 {
		t.Fatalf("unexpected queue stats %+v", status.Workflow.QueueStats)
	}
	if len(status.Workflow.StageHealth) == 0 {
		t.Fatal("expected stage health entries")
	}
}

func TestMetricsExposeQueueDepth(t *testing.T) {
	srv, store := newTestAPI(t, "")
	if _, err := store.Add(context.Background(), "a fox", "", 0); err != nil {
		t.Fatalf("add: %v", err)
	}

	rec := doRequest(srv, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `easel_queue_submissions{status="pending"} 1`) {
		t.Fatalf("expected pending gauge in metrics output:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE easel_queue_scrape_errors_total counter") {
		t.Fatalf("expected scrape error counter type in metrics output:\n%s", body)
	}
	if !strings.Contains(body, "easel_queue_scrape_errors_total 0") {
		t.Fatalf("expected zero scrape errors in metrics output:\n%s", body)
	}
}
