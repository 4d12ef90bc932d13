package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"easel/internal/queue"
)

func TestSubmitAndQueueStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"submit", "A watercolor fox at dawn"}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "queued")

	out, _, err = runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "A watercolor fox at dawn")
	requireContains(t, out, "foreground")
}

func TestSubmitRejectsEmptyPrompt(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"submit", "   "}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "prompt must not be empty") {
		t.Fatalf("expected empty prompt error, got %v", err)
	}
}

func TestQueueRetryAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	sub, err := env.store.Add(ctx, "Oil pastel lighthouse", "", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	sub.SetFailed("painter crashed")
	if err := env.store.Update(ctx, sub); err != nil {
		t.Fatalf("fail submission: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed submissions")

	updated, err := env.store.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if updated.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", updated.Status)
	}

	updated.SetFailed("painter crashed again")
	if err := env.store.Update(ctx, updated); err != nil {
		t.Fatalf("refail submission: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "clear", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed submissions")

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared")
}

func TestQueueRetrySpecificID(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	sub, err := env.store.Add(ctx, "Charcoal heron study", "", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	sub.SetFailed("upload timed out")
	if err := env.store.Update(ctx, sub); err != nil {
		t.Fatalf("fail submission: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "retry", fmt.Sprintf("%d", sub.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry specific: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Submission %d reset for retry", sub.ID))

	out, _, err = runCLI(t, []string{"queue", "retry", "9999"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry missing: %v", err)
	}
	requireContains(t, out, "Submission 9999 not found")
}

func TestQueueRetryInvalidID(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "retry", "abc"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid submission id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestQueueRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	sub, err := env.store.Add(ctx, "Ink wash mountains", "", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "remove", fmt.Sprintf("%d", sub.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Submission %d removed", sub.ID))

	out, _, err = runCLI(t, []string{"queue", "remove", fmt.Sprintf("%d", sub.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("queue remove repeat: %v", err)
	}
	requireContains(t, out, "not found")
}

func TestQueueListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.Add(ctx, "Gouache tidepools", "", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := env.store.Add(ctx, "Pixel-art comet", "", 5); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, item := range items {
		if _, ok := item["id"]; !ok {
			t.Fatal("missing 'id' key in JSON item")
		}
		if _, ok := item["status"]; !ok {
			t.Fatal("missing 'status' key in JSON item")
		}
	}
}

func TestQueueListJSONEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json empty: %v", err)
	}

	var items []any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty array, got %d items", len(items))
	}
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "list", "--status", "daydreaming"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestQueueStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.Add(ctx, "Collage of ferns", "", 0); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status --json: %v", err)
	}

	var stats map[string]int
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if stats["pending"] != 1 {
		t.Fatalf("expected pending=1, got %v", stats)
	}
	if _, ok := stats["failed"]; !ok {
		t.Fatalf("expected 'failed' key in status JSON, got: %v", stats)
	}
}

func TestQueueShow(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	sub, err := env.store.Add(ctx, "Sumi-e dragon", "artist@example.com", 3)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", sub.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "Sumi-e dragon")
	requireContains(t, out, "artist@example.com")
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", sub.ID), "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue show --json: %v", err)
	}
	var detail map[string]any
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if detail["id"] != float64(sub.ID) {
		t.Fatalf("expected id %d, got %v", sub.ID, detail["id"])
	}
	if detail["prompt"] != "Sumi-e dragon" {
		t.Fatalf("expected prompt, got %v", detail["prompt"])
	}
}

func TestQueueShowJSONNotFound(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "show", "9999", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue show --json not found: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if result["error"] != "not_found" {
		t.Fatalf("expected error=not_found, got %v", result["error"])
	}
}

func TestQueueHealthJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.Add(ctx, "Etching of a windmill", "", 0); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "health", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue health --json: %v", err)
	}

	var health map[string]int
	if err := json.Unmarshal([]byte(out), &health); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	for _, key := range []string{"total", "pending", "processing", "failed", "completed"} {
		if _, ok := health[key]; !ok {
			t.Fatalf("missing %q key in health JSON", key)
		}
	}
	if health["total"] != 1 {
		t.Fatalf("expected total=1, got %v", health["total"])
	}
}

func TestQueueResetStuck(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	sub, err := env.store.Add(ctx, "Mosaic hummingbird", "", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	sub.Status = queue.StatusCompressing
	if err := env.store.Update(ctx, sub); err != nil {
		t.Fatalf("mark compressing: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "reset-stuck"}, env.configPath)
	if err != nil {
		t.Fatalf("queue reset-stuck: %v", err)
	}
	requireContains(t, out, "Reset 1 submissions")

	updated, err := env.store.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if updated.Status != queue.StatusCaptured {
		t.Fatalf("expected captured after rollback, got %s", updated.Status)
	}
}
