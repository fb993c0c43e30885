// Package logging builds the zap logger used by every command.
package logging

import (
	"fmt"
	"io"
	"log/syslog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kidoz/display-priority-manager/internal/config"
)

// SyslogTag identifies the program in the system log.
const SyslogTag = "display-priority-manager"

const timeLayout = "2006-01-02 15:04:05"

// Options overrides the sinks New would otherwise open. Nil fields use the
// real stderr, syslog daemon and log file.
type Options struct {
	Stderr     zapcore.WriteSyncer
	DialSyslog func() (SyslogWriter, error)
	OpenFile   func(path string) (zapcore.WriteSyncer, io.Closer, error)
}

// New builds a logger that tees to the configured sinks. A sink that cannot
// be opened is reported on stderr and skipped. The returned cleanup flushes
// and closes every sink.
func New(cfg config.LogConfig) (*zap.Logger, func()) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions is New with injectable sinks.
func NewWithOptions(cfg config.LogConfig, opts Options) (*zap.Logger, func()) {
	if opts.Stderr == nil {
		opts.Stderr = zapcore.Lock(os.Stderr)
	}
	if opts.DialSyslog == nil {
		opts.DialSyslog = dialSyslog
	}
	if opts.OpenFile == nil {
		opts.OpenFile = openFile
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Debug {
		level.SetLevel(zap.DebugLevel)
	}
	enc := zapcore.NewConsoleEncoder(encoderConfig())

	var (
		cores   []zapcore.Core
		closers []io.Closer
		warns   []string
	)

	switch {
	case cfg.Syslog:
		w, err := opts.DialSyslog()
		if err != nil {
			warns = append(warns, fmt.Sprintf("cannot connect to syslog: %v", err))
			break
		}
		cores = append(cores, NewSyslogCore(w, level))
		closers = append(closers, w)
	case cfg.File != "":
		ws, c, err := opts.OpenFile(cfg.File)
		if err != nil {
			warns = append(warns, fmt.Sprintf("cannot open log file %s: %v", cfg.File, err))
			break
		}
		cores = append(cores, zapcore.NewCore(enc, ws, level))
		closers = append(closers, c)
	}

	stderrLevel := zapcore.LevelEnabler(zap.ErrorLevel)
	if cfg.Verbose || cfg.Debug {
		stderrLevel = level
	}
	cores = append(cores, zapcore.NewCore(enc, opts.Stderr, stderrLevel))

	logger := zap.New(zapcore.NewTee(cores...))
	for _, w := range warns {
		// The failed sink is gone, so the warning goes to stderr directly.
		_, _ = fmt.Fprintf(opts.Stderr, "Warning: %s\n", w)
	}

	cleanup := func() {
		_ = logger.Sync()
		for _, c := range closers {
			_ = c.Close()
		}
	}
	return logger, cleanup
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "T",
		LevelKey:         "L",
		MessageKey:       "M",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func openFile(path string) (zapcore.WriteSyncer, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is operator-supplied
	if err != nil {
		return nil, nil, err
	}
	return zapcore.Lock(f), f, nil
}

func dialSyslog() (SyslogWriter, error) {
	return syslog.New(syslog.LOG_USER|syslog.LOG_INFO, SyslogTag)
}
