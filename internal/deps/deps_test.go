package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinariesReportsMissingCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Painter", Command: ""}})
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Available || results[0].Detail != "command not configured" {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestCheckBinariesReportsMissingBinary(t *testing.T) {
	results := CheckBinaries([]Requirement{{
		Name:    "Painter",
		Command: "definitely-not-a-real-binary-easel",
	}})
	if results[0].Available {
		t.Fatalf("expected unavailable, got %+v", results[0])
	}
	if results[0].Detail == "" {
		t.Fatal("expected detail for missing binary")
	}
}

func TestCheckBinariesFindsExecutableOnPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-tool")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	t.Setenv("PATH", dir)

	results := CheckBinaries([]Requirement{{Name: "FakeTool", Command: "fake-tool", Optional: true}})
	if !results[0].Available {
		t.Fatalf("expected available, got %+v", results[0])
	}
	if !results[0].Optional {
		t.Fatal("optional flag must carry through")
	}
}
