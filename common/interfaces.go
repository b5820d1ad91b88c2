// Package common provides shared constants, types, and utilities
// used across vpnht.
package common

// SettingsStore is the key-value store shared with the host application.
// Missing keys read as the zero value.
type SettingsStore interface {
	// GetBool reads a boolean setting.
	GetBool(key string) (bool, error)
	// SetBool writes a boolean setting.
	SetBool(key string, value bool) error
	// GetString reads a string setting.
	GetString(key string) (string, error)
	// SetString writes a string setting.
	SetString(key string, value string) error
}

// CredentialStore defines the interface for secret storage.
// Implementations may use system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves a secret under key.
	Store(key, secret string) error
	// Get retrieves the secret stored under key.
	Get(key string) (string, error)
	// Delete removes the secret stored under key.
	Delete(key string) error
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
	// NotifyWithIcon sends a notification with a custom icon.
	NotifyWithIcon(title, message, icon string) error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
