package exec

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	if !Available("echo") {
		t.Skip("echo not on PATH")
	}
	res, err := Run(context.Background(), "echo", []string{"outdated"}, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "outdated" {
		t.Errorf("unexpected stdout %q", res.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	if !Available("false") {
		t.Skip("false not on PATH")
	}
	res, err := Run(context.Background(), "false", nil, "")
	if err == nil {
		t.Fatal("expected an error for non-zero exit")
	}
	if res.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", res.ExitCode)
	}
}

func TestRun_NotFound(t *testing.T) {
	res, _ := Run(context.Background(), "nonexistentcommand12345", nil, "")
	if !res.NotFound() {
		t.Errorf("expected exit code %d for missing command, got %d", ExitNotFound, res.ExitCode)
	}
	if Available("nonexistentcommand12345") {
		t.Error("missing command reported as available")
	}
}

func TestRun_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, _ := Run(ctx, "sleep", []string{"2"}, "")

	if res.NotFound() {
		t.Skip("sleep command not found, skipping timeout test")
	}
	if !res.TimedOut() {
		t.Errorf("expected exit code %d for timeout, got %d", ExitTimeout, res.ExitCode)
	}
}
