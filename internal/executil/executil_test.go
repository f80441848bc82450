package executil

import (
	"context"
	"errors"
	"testing"
)

func TestStubRunnerRecordsCallsAndReturnsQueuedResults(t *testing.T) {
	s := &StubRunner{
		Results: []StubResult{
			{Result: Result{Stdout: []byte("first")}},
			{Err: errors.New("boom")},
		},
	}

	res, err := s.Run(context.Background(), "/work", "echo", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "first" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "first")
	}

	_, err = s.Run(context.Background(), "/work", "false")
	if err == nil {
		t.Fatal("expected queued error on second call")
	}

	if len(s.Calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(s.Calls))
	}
	if s.Calls[0].Name != "echo" || s.Calls[0].Args[0] != "hi" {
		t.Errorf("unexpected recorded call: %+v", s.Calls[0])
	}
}

func TestStubRunnerExhaustedQueueReturnsZeroResult(t *testing.T) {
	s := &StubRunner{}
	res, err := s.Run(context.Background(), "", "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || len(res.Stdout) != 0 {
		t.Errorf("expected zero-value Result, got %+v", res)
	}
}

func TestOSRunnerRunsRealCommand(t *testing.T) {
	r := NewOSRunner()
	res, err := r.Run(context.Background(), "", "true")
	if err != nil {
		t.Fatalf("unexpected error running `true`: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestOSRunnerNonZeroExit(t *testing.T) {
	r := NewOSRunner()
	res, err := r.Run(context.Background(), "", "false")
	if err == nil {
		t.Fatal("expected a non-nil error from `false`'s non-zero exit")
	}
	if res.ExitCode == 0 {
		t.Error("expected a non-zero exit code")
	}
}

func TestOSRunnerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewOSRunner()
	if _, err := r.Run(ctx, "", "sleep", "5"); err == nil {
		t.Fatal("expected an error when the context is already canceled")
	}
}
