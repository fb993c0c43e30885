package fixer

import (
	"context"
	"errors"

	"github.com/kidoz/display-priority-manager/internal/display"
)

// ErrNotImplemented is returned for fix modes that have no strategy yet.
var ErrNotImplemented = errors.New("fix mode not implemented")

// Gate decides whether remediation should run on this host.
type Gate interface {
	IsEligible(ctx context.Context, force bool) bool
}

// Doctor queries and updates the compositor's output priorities.
type Doctor interface {
	Query(ctx context.Context) (display.Topology, error)
	Apply(ctx context.Context, fix *display.FixDecision, dryRun bool) error
}

// Outcome is the result of an attempt or of a whole run.
type Outcome int

const (
	// Skipped means the host is not eligible.
	Skipped Outcome = iota
	// NoFixNeeded means the internal display is already primary.
	NoFixNeeded
	// NotApplicable means no internal display was reported.
	NotApplicable
	// Applied means the corrective command ran, or was logged in dry-run mode.
	Applied
	// Checked means the check report was printed.
	Checked
	// Failed is a failed attempt, or a non-retryable failure of the run.
	Failed
	// ExhaustedRetries means every attempt failed.
	ExhaustedRetries
	// Interrupted means the run was cancelled.
	Interrupted
	// NotImplemented means the selected mode has no strategy.
	NotImplemented
)

var outcomeNames = map[Outcome]string{
	Skipped:          "skipped",
	NoFixNeeded:      "no-fix-needed",
	NotApplicable:    "not-applicable",
	Applied:          "applied",
	Checked:          "checked",
	Failed:           "failed",
	ExhaustedRetries: "exhausted-retries",
	Interrupted:      "interrupted",
	NotImplemented:   "not-implemented",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Success reports whether the outcome is a no-op or completed fix.
func (o Outcome) Success() bool {
	switch o {
	case Skipped, NoFixNeeded, NotApplicable, Applied, Checked:
		return true
	}
	return false
}

// AttemptResult is the outcome of one attempt.
type AttemptResult struct {
	Number    int
	Outcome   Outcome
	Retryable bool
	Err       error
	Decision  *display.FixDecision
}

// Result is the terminal state of a run.
type Result struct {
	Outcome  Outcome
	Attempts int
	Last     *AttemptResult
	Err      error
}
