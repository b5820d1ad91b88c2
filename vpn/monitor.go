package vpn

import (
	"context"
	"sync"
	"time"

	"github.com/yllada/vpnht/common"
)

// MonitorState is the tunnel state as seen by the monitor.
type MonitorState int

const (
	StateUnknown MonitorState = iota
	StateUp
	StateDown
)

// String returns a human-readable representation of the state.
func (s MonitorState) String() string {
	switch s {
	case StateUp:
		return "Up"
	case StateDown:
		return "Down"
	default:
		return "Unknown"
	}
}

// MonitorConfig holds configuration for the monitor.
type MonitorConfig struct {
	// Interval is how often to re-derive the tunnel state.
	Interval time.Duration
	// FailureThreshold is how many consecutive query errors before the
	// state becomes Unknown.
	FailureThreshold int
	// AutoReconnect restarts the tunnel when it goes down on its own.
	AutoReconnect bool
	// MaxReconnectAttempts bounds consecutive reconnects (0 = unlimited).
	MaxReconnectAttempts int
}

// DefaultMonitorConfig returns sensible defaults for monitoring.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:             common.MonitorInterval,
		FailureThreshold:     3,
		AutoReconnect:        false,
		MaxReconnectAttempts: 3,
	}
}

type monitoredTunnel interface {
	IsRunning(ctx context.Context) (bool, error)
	Connect(ctx context.Context, opts ConnectOptions) error
}

// Monitor periodically re-derives the tunnel state and reports changes.
type Monitor struct {
	mu                sync.RWMutex
	config            MonitorConfig
	tunnel            monitoredTunnel
	running           bool
	stopChan          chan struct{}
	done              chan struct{}
	state             MonitorState
	consecutiveFails  int
	reconnectAttempts int
	onChange          func(oldState, newState MonitorState)
}

// NewMonitor creates a monitor for tunnel.
func NewMonitor(tunnel monitoredTunnel, config MonitorConfig) *Monitor {
	if config.Interval <= 0 {
		config.Interval = common.MonitorInterval
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	return &Monitor{config: config, tunnel: tunnel}
}

// SetOnChange sets a callback for state changes.
func (m *Monitor) SetOnChange(callback func(oldState, newState MonitorState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = callback
}

// State returns the last observed state.
func (m *Monitor) State() MonitorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Start begins the monitoring loop. It stops on Stop or when ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	common.LogInfo("Monitor started (interval: %v)", m.config.Interval)
	go m.runLoop(ctx, m.stopChan, m.done)
}

// Stop stops the monitoring loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	done := m.done
	m.mu.Unlock()

	<-done
	common.LogInfo("Monitor stopped")
}

// IsRunning returns whether the monitoring loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) runLoop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check performs one state derivation and returns the resulting state.
func (m *Monitor) Check(ctx context.Context) MonitorState {
	running, err := m.tunnel.IsRunning(ctx)

	m.mu.Lock()
	oldState := m.state
	if err != nil {
		m.consecutiveFails++
		common.LogWarn("Tunnel state check failed (attempt %d/%d): %v",
			m.consecutiveFails, m.config.FailureThreshold, err)
		if m.consecutiveFails >= m.config.FailureThreshold {
			m.state = StateUnknown
		}
	} else {
		m.consecutiveFails = 0
		if running {
			m.state = StateUp
			m.reconnectAttempts = 0
		} else {
			m.state = StateDown
		}
	}
	newState := m.state
	onChange := m.onChange
	reconnect := oldState == StateUp && newState == StateDown && m.shouldReconnectLocked()
	m.mu.Unlock()

	if oldState != newState {
		common.LogInfo("Tunnel state changed: %s -> %s", oldState, newState)
		if onChange != nil {
			onChange(oldState, newState)
		}
	}
	if reconnect {
		m.reconnect(ctx)
	}
	return newState
}

func (m *Monitor) shouldReconnectLocked() bool {
	if !m.config.AutoReconnect {
		return false
	}
	if m.config.MaxReconnectAttempts > 0 && m.reconnectAttempts >= m.config.MaxReconnectAttempts {
		common.LogError("Max reconnect attempts reached")
		return false
	}
	m.reconnectAttempts++
	return true
}

func (m *Monitor) reconnect(ctx context.Context) {
	common.LogInfo("Tunnel went down, reconnecting")
	if err := m.tunnel.Connect(ctx, ConnectOptions{RespectDisabled: true}); err != nil {
		common.LogError("Reconnect failed: %v", err)
	}
}
