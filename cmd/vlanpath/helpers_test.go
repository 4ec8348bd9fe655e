package main

import (
	"testing"
	"time"
)

func TestDefaultOutputPath(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := defaultOutputPath(ts)
	want := "vlanpath-results-20260314-092653.csv"
	if got != want {
		t.Errorf("defaultOutputPath = %q, want %q", got, want)
	}
}

func TestResolvePasswordFromEnv(t *testing.T) {
	t.Setenv("VLANPATH_TEST_PASSWORD", "hunter2")
	got, err := resolvePassword("VLANPATH_TEST_PASSWORD", "unused prompt")
	if err != nil {
		t.Fatalf("resolvePassword: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("resolvePassword = %q, want %q", got, "hunter2")
	}
}
