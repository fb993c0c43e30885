package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// runFix builds the fixer and runs it until a terminal outcome or a
// SIGINT/SIGTERM.
func runFix(cmd *cobra.Command) error {
	log := GetLogger()
	cfg := GetConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := initFixer(cfg, log)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: fmt.Errorf("failed to initialize fixer: %w", err)}
	}
	f.SetOutput(cmd.OutOrStdout())

	res := f.Run(ctx)
	if code := exitCode(res.Outcome); code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}
