package vpn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type scriptedTunnel struct {
	mu       sync.Mutex
	results  []bool
	err      error
	connects int
}

func (s *scriptedTunnel) IsRunning(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if len(s.results) == 0 {
		return false, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r, nil
}

func (s *scriptedTunnel) Connect(ctx context.Context, opts ConnectOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	return nil
}

func TestMonitorState_String(t *testing.T) {
	tests := []struct {
		state    MonitorState
		expected string
	}{
		{StateUp, "Up"},
		{StateDown, "Down"},
		{StateUnknown, "Unknown"},
		{MonitorState(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("MonitorState.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDefaultMonitorConfig(t *testing.T) {
	config := DefaultMonitorConfig()

	if config.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", config.Interval)
	}
	if config.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %v, want 3", config.FailureThreshold)
	}
	if config.AutoReconnect {
		t.Error("AutoReconnect should default to false")
	}
}

func TestMonitor_CheckReportsChanges(t *testing.T) {
	tunnel := &scriptedTunnel{results: []bool{true, true, false}}
	m := NewMonitor(tunnel, MonitorConfig{Interval: time.Hour})

	type change struct{ from, to MonitorState }
	var changes []change
	m.SetOnChange(func(oldState, newState MonitorState) {
		changes = append(changes, change{oldState, newState})
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m.Check(ctx)
	}

	want := []change{{StateUnknown, StateUp}, {StateUp, StateDown}}
	if diff := cmp.Diff(want, changes, cmp.AllowUnexported(change{})); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if tunnel.connects != 0 {
		t.Errorf("connects = %d, want 0 without AutoReconnect", tunnel.connects)
	}
}

func TestMonitor_FailureThreshold(t *testing.T) {
	tunnel := &scriptedTunnel{results: []bool{true}}
	m := NewMonitor(tunnel, MonitorConfig{Interval: time.Hour, FailureThreshold: 2})
	ctx := context.Background()

	if got := m.Check(ctx); got != StateUp {
		t.Fatalf("Check() = %v, want Up", got)
	}
	tunnel.err = errors.New("query failed")
	if got := m.Check(ctx); got != StateUp {
		t.Errorf("Check() after one failure = %v, want Up", got)
	}
	if got := m.Check(ctx); got != StateUnknown {
		t.Errorf("Check() after threshold = %v, want Unknown", got)
	}
}

func TestMonitor_AutoReconnect(t *testing.T) {
	tunnel := &scriptedTunnel{results: []bool{true, false, true, false, false}}
	m := NewMonitor(tunnel, MonitorConfig{Interval: time.Hour, AutoReconnect: true, MaxReconnectAttempts: 1})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.Check(ctx)
	}
	// The first drop reconnects; an Up in between resets the budget.
	if tunnel.connects != 2 {
		t.Errorf("connects = %d, want 2", tunnel.connects)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	tunnel := &scriptedTunnel{results: []bool{true}}
	m := NewMonitor(tunnel, MonitorConfig{Interval: 10 * time.Millisecond})

	m.Start(context.Background())
	if !m.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	m.Stop()
	if m.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	m.Stop()
}
