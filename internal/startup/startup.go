// Package startup runs the ordered readiness checks that gate the daemon.
// Checks run sequentially because later checks assume earlier ones passed:
// the schema check is meaningless if database connectivity already failed.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chimera/internal/logging"
)

// State is the progress-callback phase for one check.
type State string

const (
	StateChecking State = "checking"
	StatePassed   State = "passed"
	StateFailed   State = "failed"
	StateSkipped  State = "skipped"
)

// Check is one named readiness probe with its retry policy.
type Check struct {
	Name       string
	Required   bool
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
	Run        func(ctx context.Context) error
}

// Progress is invoked for each state change of each check.
type Progress func(name string, state State, detail string)

// Result aggregates a full startup sequence.
type Result struct {
	Success  bool
	Passed   []string
	Failed   []string
	Skipped  []string
	Errors   []error
	Duration time.Duration
}

// Manager runs an ordered check list.
type Manager struct {
	checks   []Check
	progress Progress
	logger   *slog.Logger
}

// New builds a Manager. The progress callback may be nil.
func New(checks []Check, progress Progress, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if progress == nil {
		progress = func(string, State, string) {}
	}
	return &Manager{
		checks:   checks,
		progress: progress,
		logger:   logging.NewComponentLogger(logger, "startup"),
	}
}

// Run executes the checks in order. A required check that exhausts its
// retries aborts the sequence; an optional one is logged and skipped.
func (m *Manager) Run(ctx context.Context) *Result {
	start := time.Now()
	result := &Result{Success: true}

	for _, check := range m.checks {
		if !result.Success {
			// A required failure already aborted the sequence.
			break
		}
		m.progress(check.Name, StateChecking, "")

		err := m.runWithRetry(ctx, check)
		if err == nil {
			result.Passed = append(result.Passed, check.Name)
			m.progress(check.Name, StatePassed, "")
			continue
		}

		wrapped := fmt.Errorf("check %q: %w", check.Name, err)
		if check.Required {
			result.Success = false
			result.Failed = append(result.Failed, check.Name)
			result.Errors = append(result.Errors, wrapped)
			m.progress(check.Name, StateFailed, err.Error())
			m.logger.Error("required startup check failed",
				logging.Args(logging.String("check", check.Name), logging.Error(err))...)
			continue
		}

		result.Skipped = append(result.Skipped, check.Name)
		result.Errors = append(result.Errors, wrapped)
		m.progress(check.Name, StateSkipped, err.Error())
		m.logger.Warn("optional startup check failed, continuing",
			logging.Args(logging.String("check", check.Name), logging.Error(err))...)
	}

	result.Duration = time.Since(start)
	return result
}

func (m *Manager) runWithRetry(ctx context.Context, check Check) error {
	attempts := check.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		checkCtx := ctx
		cancel := func() {}
		if check.Timeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, check.Timeout)
		}
		lastErr = check.Run(checkCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			m.logger.Debug("startup check retrying",
				logging.Args(
					logging.String("check", check.Name),
					logging.Int("attempt", attempt),
					logging.Error(lastErr),
				)...)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(check.RetryDelay):
			}
		}
	}
	return lastErr
}
