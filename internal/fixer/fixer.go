// Package fixer drives the check, reconcile and apply cycle with bounded
// retries.
package fixer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kidoz/display-priority-manager/internal/config"
	"github.com/kidoz/display-priority-manager/internal/display"
	"github.com/kidoz/display-priority-manager/internal/hardware"
	"github.com/kidoz/display-priority-manager/internal/kscreen"
	"github.com/kidoz/display-priority-manager/internal/notify"
	"github.com/kidoz/display-priority-manager/internal/telemetry"
)

// Fixer is the retry controller. Its only state across attempts is the
// attempt count and the last AttemptResult, both local to Run.
type Fixer struct {
	cfg      *config.Config
	log      *zap.Logger
	gate     Gate
	doctor   Doctor
	notifier notify.Notifier
	out      io.Writer
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Fixer. The check report is written to stdout.
func New(cfg *config.Config, log *zap.Logger, gate Gate, doctor Doctor, notifier notify.Notifier) *Fixer {
	return &Fixer{
		cfg:      cfg,
		log:      log,
		gate:     gate,
		doctor:   doctor,
		notifier: notifier,
		out:      os.Stdout,
		sleep:    sleepContext,
	}
}

// SetOutput redirects the check report.
func (f *Fixer) SetOutput(w io.Writer) {
	f.out = w
}

// Run checks eligibility once, then runs up to MaxRetries attempts. It never
// returns an error; failures are reported through Result.
func (f *Fixer) Run(ctx context.Context) Result {
	fc := f.cfg.Fix
	ctx, span := telemetry.Tracer().Start(ctx, "Fixer.Run", trace.WithAttributes(
		telemetry.ModeKey.String(string(fc.Mode)),
		telemetry.DryRunKey.Bool(fc.DryRun),
	))
	defer span.End()

	res := f.run(ctx)

	span.SetAttributes(
		telemetry.OutcomeKey.String(res.Outcome.String()),
		telemetry.AttemptKey.Int(res.Attempts),
	)
	if !res.Outcome.Success() {
		span.SetStatus(codes.Error, res.Outcome.String())
	}
	f.logResult(res)
	return res
}

func (f *Fixer) run(ctx context.Context) Result {
	fc := f.cfg.Fix
	f.log.Info("Display Priority Manager starting",
		zap.String("mode", string(fc.Mode)),
		zap.Bool("force", fc.Force),
		zap.Bool("dry_run", fc.DryRun),
		zap.Int("max_retries", fc.MaxRetries),
	)

	if ctx.Err() != nil {
		return Result{Outcome: Interrupted, Err: ctx.Err()}
	}

	f.logProfile(ctx)

	// Checked once. A hot-plug during the retry window is not re-evaluated.
	if !f.gate.IsEligible(ctx, fc.Force) {
		f.log.Info("Fix not needed for this hardware")
		return Result{Outcome: Skipped}
	}

	switch fc.Mode {
	case config.ModeConfig, config.ModeLibrary, config.ModeDaemon:
		return Result{
			Outcome: NotImplemented,
			Err:     fmt.Errorf("%w: %s", ErrNotImplemented, fc.Mode),
		}
	}

	var last *AttemptResult
	for n := 1; n <= fc.MaxRetries; n++ {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: Interrupted, Attempts: n - 1, Last: last, Err: err}
		}

		f.log.Info(fmt.Sprintf("Fix attempt %d of %d", n, fc.MaxRetries))
		ar := f.attempt(ctx, n)
		last = &ar

		if ar.Outcome == Failed && ctx.Err() != nil {
			return Result{Outcome: Interrupted, Attempts: n, Last: last, Err: ctx.Err()}
		}
		if ar.Outcome != Failed {
			return Result{Outcome: ar.Outcome, Attempts: n, Last: last}
		}
		if !ar.Retryable {
			return Result{Outcome: Failed, Attempts: n, Last: last, Err: ar.Err}
		}
		if n == fc.MaxRetries {
			break
		}

		if err := ctx.Err(); err != nil {
			return Result{Outcome: Interrupted, Attempts: n, Last: last, Err: err}
		}
		f.log.Warn(fmt.Sprintf("Fix attempt %d failed, waiting %d seconds before retry...", n, fc.RetryDelay))
		if err := f.sleep(ctx, fc.RetryInterval()); err != nil {
			return Result{Outcome: Interrupted, Attempts: n, Last: last, Err: err}
		}
	}

	res := Result{Outcome: ExhaustedRetries, Attempts: fc.MaxRetries, Last: last}
	if last != nil {
		res.Err = last.Err
	}
	return res
}

func (f *Fixer) attempt(ctx context.Context, n int) AttemptResult {
	ctx, span := telemetry.Tracer().Start(ctx, "Fixer.attempt", trace.WithAttributes(
		telemetry.AttemptKey.Int(n),
		telemetry.ModeKey.String(string(f.cfg.Fix.Mode)),
	))
	defer span.End()

	ar := f.reconcile(ctx)
	ar.Number = n

	span.SetAttributes(telemetry.OutcomeKey.String(ar.Outcome.String()))
	if ar.Err != nil {
		span.RecordError(ar.Err)
		span.SetStatus(codes.Error, ar.Err.Error())
	}
	return ar
}

func (f *Fixer) reconcile(ctx context.Context) AttemptResult {
	topo, err := f.doctor.Query(ctx)
	if err != nil {
		f.log.Warn("Failed to query display configuration", zap.Error(err))
		return failed(err)
	}

	verdict, fix := display.Reconcile(topo)

	if f.cfg.Fix.Mode == config.ModeCheck {
		if err := writeReport(f.out, topo, verdict, fix); err != nil {
			return AttemptResult{Outcome: Failed, Err: fmt.Errorf("failed to write report: %w", err)}
		}
		return AttemptResult{Outcome: Checked, Decision: fix}
	}

	switch verdict {
	case display.NotApplicable:
		f.log.Warn("No internal display found", zap.Int("displays", len(topo)))
		return AttemptResult{Outcome: NotApplicable}
	case display.NoFixNeeded:
		internal, _ := topo.Internal()
		f.log.Info("Internal display already has priority 1 - no fix needed", zap.String("output", internal.Name))
		return AttemptResult{Outcome: NoFixNeeded}
	}

	f.log.Info(fmt.Sprintf("Internal display %s has priority %d - fixing...", fix.Internal.Name, fix.Previous))

	if err := f.doctor.Apply(ctx, fix, f.cfg.Fix.DryRun); err != nil {
		f.log.Warn("Failed to apply display priority fix", zap.Error(err))
		ar := failed(err)
		ar.Decision = fix
		return ar
	}

	if f.cfg.Fix.DryRun {
		return AttemptResult{Outcome: Applied, Decision: fix}
	}

	f.log.Info("Display priority fix applied successfully")
	f.notifyApplied(ctx, fix)
	return AttemptResult{Outcome: Applied, Decision: fix}
}

// profiler is implemented by gates that can describe the host.
type profiler interface {
	Profile(ctx context.Context) hardware.HostProfile
}

func (f *Fixer) logProfile(ctx context.Context) {
	p, ok := f.gate.(profiler)
	if !ok || !f.log.Core().Enabled(zap.DebugLevel) {
		return
	}
	hp := p.Profile(ctx)
	f.log.Debug("Host profile",
		zap.String("vendor", hp.Vendor),
		zap.String("product", hp.Product),
		zap.Bool("driver_loaded", hp.DriverLoaded),
		zap.Bool("discrete_gpu", hp.DiscretePresent),
		zap.Bool("integrated_gpu", hp.IntegratedPresent),
		zap.Int("connected_displays", hp.ConnectedDisplays),
	)
}

func (f *Fixer) notifyApplied(ctx context.Context, fix *display.FixDecision) {
	err := f.notifier.Notify(ctx, "Display priority restored",
		fmt.Sprintf("%s is now the primary display", fix.Internal.Name))
	if err != nil {
		f.log.Warn("Failed to send desktop notification", zap.Error(err))
	}
}

func (f *Fixer) logResult(res Result) {
	switch res.Outcome {
	case Applied:
		if f.cfg.Fix.DryRun {
			f.log.Info("Dry run completed - no changes were made", zap.Int("attempts", res.Attempts))
			return
		}
		f.log.Info("Display priority fix completed successfully", zap.Int("attempts", res.Attempts))
	case Skipped, NoFixNeeded, NotApplicable, Checked:
		f.log.Info("Finished", zap.Stringer("outcome", res.Outcome), zap.Int("attempts", res.Attempts))
	case ExhaustedRetries:
		f.log.Error("All fix attempts failed", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	case Interrupted:
		f.log.Error("Interrupted - stopping before the fix completed", zap.Int("attempts", res.Attempts))
	default:
		f.log.Error("Display priority fix failed", zap.Stringer("outcome", res.Outcome), zap.Error(res.Err))
	}
}

// failed classifies err. Query launch failures and command failures are
// retryable; anything else, such as an unsafe output name, is not.
func failed(err error) AttemptResult {
	var (
		parseErr *kscreen.ParseError
		execErr  *kscreen.ExecutionError
	)
	retryable := errors.As(err, &parseErr) || errors.As(err, &execErr)
	return AttemptResult{Outcome: Failed, Retryable: retryable, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
