package cmd

import (
	"fmt"

	"github.com/kidoz/display-priority-manager/internal/fixer"
)

// Process exit statuses.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
	ExitInterrupted = 130
)

// ExitError carries the process exit status out of a command. A nil Err
// exits silently; the failure has already been logged.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode maps a fix outcome to the process exit status.
func exitCode(o fixer.Outcome) int {
	switch o {
	case fixer.Interrupted:
		return ExitInterrupted
	case fixer.ExhaustedRetries, fixer.Failed, fixer.NotImplemented:
		return ExitFailure
	default:
		return ExitOK
	}
}
