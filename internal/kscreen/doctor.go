// Package kscreen talks to KDE's kscreen-doctor: it reads the output status
// dump and issues priority assignments.
package kscreen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/kidoz/display-priority-manager/internal/config"
	"github.com/kidoz/display-priority-manager/internal/display"
	"github.com/kidoz/display-priority-manager/internal/telemetry"
)

// ParseError means the status query could not be launched.
type ParseError struct {
	Command string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to run %s: %v", e.Command, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExecutionError carries the exit status of a failed priority assignment.
// ExitCode is -1 when the shell could not be started.
type ExecutionError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q failed (exit code: %d): %v", e.Command, e.ExitCode, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Runner starts external processes.
type Runner interface {
	// Output runs name and returns its stdout. A non-nil error with output
	// means the process ran and exited nonzero.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Run runs name and returns its exit status.
	Run(ctx context.Context, name string, args ...string) (int, error)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

// Output implements Runner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // G204: binary path comes from validated config
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	return stdout.Bytes(), err
}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // G204: output names are validated by sanitize.go before reaching here
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// Doctor wraps kscreen-doctor.
type Doctor struct {
	cfg    *config.Config
	log    *zap.Logger
	runner Runner
	parser *Parser
}

// NewDoctor creates a Doctor that runs real processes.
func NewDoctor(cfg *config.Config, log *zap.Logger) *Doctor {
	return NewDoctorWithRunner(cfg, log, ExecRunner{})
}

// NewDoctorWithRunner creates a Doctor with a custom process runner.
func NewDoctorWithRunner(cfg *config.Config, log *zap.Logger, runner Runner) *Doctor {
	return &Doctor{
		cfg:    cfg,
		log:    log,
		runner: runner,
		parser: NewParser(cfg.KScreen.InternalPatterns, cfg.KScreen.MaxNameLength),
	}
}

// Query runs `kscreen-doctor -o` and parses its output. It fails when the
// process cannot be launched or ctx is done; a nonzero exit still yields
// whatever stdout contained.
func (d *Doctor) Query(ctx context.Context) (display.Topology, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "Doctor.Query")
	defer span.End()

	out, err := d.runner.Output(ctx, d.cfg.KScreen.DoctorPath, "-o")
	// A cancelled query is killed mid-dump; its stdout is not a topology.
	if ctxErr := ctx.Err(); ctxErr != nil {
		span.RecordError(ctxErr)
		return nil, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			span.RecordError(err)
			return nil, &ParseError{Command: d.cfg.KScreen.DoctorPath + " -o", Err: err}
		}
		d.log.Debug("kscreen-doctor exited nonzero", zap.Int("exit_code", exitErr.ExitCode()))
	}

	topo := d.parser.Parse(string(out))
	for _, r := range topo {
		d.log.Debug("Found display",
			zap.String("output", r.Name),
			zap.Int("priority", r.Priority),
			zap.Bool("internal", r.IsInternal()),
		)
	}
	return topo, nil
}

// RenderCommand builds the single kscreen-doctor invocation for fix.
func (d *Doctor) RenderCommand(fix *display.FixDecision) (string, error) {
	if fix == nil {
		return "", errors.New("no fix decision")
	}
	parts := []string{d.cfg.KScreen.DoctorPath}
	for _, a := range fix.Assignments() {
		if err := ValidateOutputName(a.Name); err != nil {
			return "", err
		}
		if err := ValidatePriority(a.Priority); err != nil {
			return "", fmt.Errorf("output %s: %w", a.Name, err)
		}
		parts = append(parts, fmt.Sprintf("output.%s.priority.%d", a.Name, a.Priority))
	}
	return strings.Join(parts, " "), nil
}

// Apply renders fix and runs it through the shell. With dryRun the command
// is only logged and no process is started.
func (d *Doctor) Apply(ctx context.Context, fix *display.FixDecision, dryRun bool) error {
	ctx, span := telemetry.Tracer().Start(ctx, "Doctor.Apply")
	defer span.End()

	command, err := d.RenderCommand(fix)
	if err != nil {
		span.RecordError(err)
		return err
	}

	d.log.Info("Executing: " + command)

	if dryRun {
		d.log.Info("Dry run mode - not executing command")
		return nil
	}

	code, err := d.runner.Run(ctx, d.cfg.KScreen.Shell, "-c", command)
	if code != 0 {
		if err == nil {
			err = fmt.Errorf("exit status %d", code)
		}
		span.RecordError(err)
		return &ExecutionError{Command: command, ExitCode: code, Err: err}
	}
	if err != nil {
		span.RecordError(err)
		return &ExecutionError{Command: command, ExitCode: -1, Err: err}
	}
	return nil
}
