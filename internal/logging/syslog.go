package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SyslogWriter is the subset of *syslog.Writer the core needs.
type SyslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
	Crit(m string) error
	Close() error
}

// syslogCore writes each entry at the syslog severity matching its level.
// The daemon adds its own timestamp, so only the message and fields are
// encoded.
type syslogCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	w   SyslogWriter
}

// NewSyslogCore returns a zapcore.Core backed by w.
func NewSyslogCore(w SyslogWriter, enab zapcore.LevelEnabler) zapcore.Core {
	return &syslogCore{
		LevelEnabler: enab,
		enc: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:       "M",
			LineEnding:       "",
			ConsoleSeparator: " ",
		}),
		w: w,
	}
}

func (c *syslogCore) With(fields []zap.Field) zapcore.Core {
	clone := &syslogCore{LevelEnabler: c.LevelEnabler, enc: c.enc.Clone(), w: c.w}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *syslogCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *syslogCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := strings.TrimSuffix(buf.String(), "\n")
	buf.Free()

	switch {
	case ent.Level >= zapcore.DPanicLevel:
		return c.w.Crit(msg)
	case ent.Level == zapcore.ErrorLevel:
		return c.w.Err(msg)
	case ent.Level == zapcore.WarnLevel:
		return c.w.Warning(msg)
	case ent.Level == zapcore.InfoLevel:
		return c.w.Info(msg)
	default:
		return c.w.Debug(msg)
	}
}

func (c *syslogCore) Sync() error { return nil }
