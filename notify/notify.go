// Package notify delivers desktop notifications for tunnel events.
package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/vpnht/common"
	"github.com/yllada/vpnht/vpn"
)

const (
	notificationsName = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
	notifyMethod      = notificationsName + ".Notify"

	defaultIcon    = "network-vpn"
	expireTimeout  = int32(5000)
	appDisplayName = "vpnht"
)

// DBus sends notifications through the freedesktop notification service
// on the session bus.
type DBus struct {
	conn *dbus.Conn
}

// NewDBus connects to the session bus.
func NewDBus() (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DBus{conn: conn}, nil
}

// Notify implements common.Notifier.
func (d *DBus) Notify(title, message string) error {
	return d.NotifyWithIcon(title, message, defaultIcon)
}

// NotifyWithIcon implements common.Notifier.
func (d *DBus) NotifyWithIcon(title, message, icon string) error {
	obj := d.conn.Object(notificationsName, dbus.ObjectPath(notificationsPath))
	call := obj.Call(notifyMethod, 0,
		appDisplayName,
		uint32(0),
		icon,
		title,
		message,
		[]string{},
		map[string]dbus.Variant{},
		expireTimeout,
	)
	if call.Err != nil {
		return fmt.Errorf("failed to send notification: %w", call.Err)
	}
	return nil
}

// Close closes the bus connection.
func (d *DBus) Close() error {
	return d.conn.Close()
}

// Noop discards notifications.
type Noop struct{}

// Notify implements common.Notifier.
func (Noop) Notify(title, message string) error { return nil }

// NotifyWithIcon implements common.Notifier.
func (Noop) NotifyWithIcon(title, message, icon string) error { return nil }

// New returns a DBus notifier when enabled and available, otherwise Noop.
func New(enabled bool) common.Notifier {
	if !enabled {
		return Noop{}
	}
	d, err := NewDBus()
	if err != nil {
		common.LogDebug("Desktop notifications unavailable: %v", err)
		return Noop{}
	}
	return d
}

// EventHandler maps tunnel events to notifications.
func EventHandler(n common.Notifier) func(vpn.Event) {
	return func(e vpn.Event) {
		var title, message, icon string
		switch e {
		case vpn.EventConnected:
			title, message, icon = "VPN Connected", "The tunnel is up", "network-vpn"
		case vpn.EventDisconnected:
			title, message, icon = "VPN Disconnected", "The tunnel is down", "network-vpn-disconnected"
		case vpn.EventRefresh:
			title, message, icon = "VPN Active", "The tunnel was already running", "network-vpn"
		default:
			return
		}
		if err := n.NotifyWithIcon(title, message, icon); err != nil {
			common.LogWarn("Error showing notification: %v", err)
		}
	}
}
