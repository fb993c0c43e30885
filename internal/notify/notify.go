// Package notify sends desktop notifications over the session D-Bus.
package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/kidoz/display-priority-manager/internal/config"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyCall = busName + ".Notify"

	icon = "video-display"
)

// Notifier delivers a user-visible message.
type Notifier interface {
	Notify(ctx context.Context, summary, body string) error
}

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string, string) error { return nil }

// Caller is the part of dbus.BusObject used to send a notification.
type Caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Dialer opens the notification service object and returns a func that
// releases the connection.
type Dialer func(ctx context.Context) (Caller, func(), error)

// DBus sends notifications through org.freedesktop.Notifications.
type DBus struct {
	cfg  config.NotifyConfig
	log  *zap.Logger
	dial Dialer
}

// NewDBus creates a notifier that connects to the session bus per message.
func NewDBus(cfg config.NotifyConfig, log *zap.Logger) *DBus {
	return NewDBusWithDialer(cfg, log, dialSession)
}

// NewDBusWithDialer creates a notifier with a custom bus dialer.
func NewDBusWithDialer(cfg config.NotifyConfig, log *zap.Logger, dial Dialer) *DBus {
	return &DBus{cfg: cfg, log: log, dial: dial}
}

// Notify implements Notifier.
func (n *DBus) Notify(ctx context.Context, summary, body string) error {
	obj, release, err := n.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer release()

	hints := map[string]dbus.Variant{
		"urgency":   dbus.MakeVariant(byte(1)),
		"category":  dbus.MakeVariant("device"),
		"transient": dbus.MakeVariant(true),
	}
	call := obj.CallWithContext(ctx, notifyCall, 0,
		n.cfg.AppName,
		uint32(0),
		icon,
		summary,
		body,
		[]string{},
		hints,
		int32(n.cfg.TimeoutMS),
	)

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notification failed: %w", err)
	}
	n.log.Debug("Desktop notification sent", zap.Uint32("id", id))
	return nil
}

func dialSession(ctx context.Context) (Caller, func(), error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	return conn.Object(busName, objectPath), func() { _ = conn.Close() }, nil
}

// New returns the DBus notifier when notifications are enabled, else Nop.
func New(cfg *config.Config, log *zap.Logger) Notifier {
	if !cfg.Notify.Enabled {
		return Nop{}
	}
	return NewDBus(cfg.Notify, log)
}
