package startup_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chimera/internal/startup"
)

func TestRunAllChecksPass(t *testing.T) {
	var order []string
	checks := []startup.Check{
		{Name: "database", Required: true, Run: func(context.Context) error {
			order = append(order, "database")
			return nil
		}},
		{Name: "schema", Required: true, Run: func(context.Context) error {
			order = append(order, "schema")
			return nil
		}},
	}

	result := startup.New(checks, nil, nil).Run(context.Background())
	if !result.Success {
		t.Fatalf("expected success: %#v", result)
	}
	if len(result.Passed) != 2 || len(result.Failed) != 0 || len(result.Skipped) != 0 {
		t.Fatalf("unexpected tallies: %#v", result)
	}
	if order[0] != "database" || order[1] != "schema" {
		t.Fatalf("checks ran out of order: %v", order)
	}
}

func TestRunRequiredFailureAbortsSequence(t *testing.T) {
	ran := false
	checks := []startup.Check{
		{Name: "database", Required: true, RetryCount: 3, RetryDelay: time.Millisecond, Run: func(context.Context) error {
			return errors.New("no such file")
		}},
		{Name: "schema", Required: true, Run: func(context.Context) error {
			ran = true
			return nil
		}},
	}

	result := startup.New(checks, nil, nil).Run(context.Background())
	if result.Success {
		t.Fatal("expected failure")
	}
	if ran {
		t.Fatal("later check should not run after a required failure")
	}
	if len(result.Failed) != 1 || result.Failed[0] != "database" {
		t.Fatalf("unexpected failed list: %v", result.Failed)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0].Error(), `check "database"`) {
		t.Fatalf("error should name the check: %v", result.Errors)
	}
}

func TestRunOptionalFailureIsSkipped(t *testing.T) {
	checks := []startup.Check{
		{Name: "embedding-provider", Required: false, Run: func(context.Context) error {
			return errors.New("ollama unreachable")
		}},
		{Name: "watcher", Required: true, Run: func(context.Context) error {
			return nil
		}},
	}

	result := startup.New(checks, nil, nil).Run(context.Background())
	if !result.Success {
		t.Fatalf("optional failure should not abort: %#v", result)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "embedding-provider" {
		t.Fatalf("unexpected skipped list: %v", result.Skipped)
	}
	if len(result.Passed) != 1 || result.Passed[0] != "watcher" {
		t.Fatalf("unexpected passed list: %v", result.Passed)
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	checks := []startup.Check{
		{Name: "flaky", Required: true, RetryCount: 3, RetryDelay: time.Millisecond, Run: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}},
	}

	result := startup.New(checks, nil, nil).Run(context.Background())
	if !result.Success {
		t.Fatalf("expected eventual success: %#v", result)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunReportsProgress(t *testing.T) {
	var events []string
	progress := func(name string, state startup.State, detail string) {
		events = append(events, name+":"+string(state))
	}
	checks := []startup.Check{
		{Name: "ok", Required: true, Run: func(context.Context) error { return nil }},
		{Name: "soft", Required: false, Run: func(context.Context) error { return errors.New("down") }},
	}

	startup.New(checks, progress, nil).Run(context.Background())

	want := []string{"ok:checking", "ok:passed", "soft:checking", "soft:skipped"}
	if len(events) != len(want) {
		t.Fatalf("unexpected events: %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestRunHonorsCheckTimeout(t *testing.T) {
	checks := []startup.Check{
		{Name: "slow", Required: true, Timeout: 10 * time.Millisecond, Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}

	start := time.Now()
	result := startup.New(checks, nil, nil).Run(context.Background())
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not applied, took %s", elapsed)
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := []startup.Check{
		{Name: "anything", Required: true, Run: func(context.Context) error { return nil }},
	}
	result := startup.New(checks, nil, nil).Run(ctx)
	if result.Success {
		t.Fatal("expected canceled run to fail")
	}
}
