package notify

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yllada/vpnht/vpn"
)

type recorder struct {
	sent [][3]string
	err  error
}

func (r *recorder) Notify(title, message string) error {
	return r.NotifyWithIcon(title, message, "")
}

func (r *recorder) NotifyWithIcon(title, message, icon string) error {
	r.sent = append(r.sent, [3]string{title, message, icon})
	return r.err
}

func TestEventHandler(t *testing.T) {
	r := &recorder{}
	handle := EventHandler(r)

	handle(vpn.EventConnected)
	handle(vpn.EventDisconnected)
	handle(vpn.EventRefresh)
	handle(vpn.Event(99))

	want := [][3]string{
		{"VPN Connected", "The tunnel is up", "network-vpn"},
		{"VPN Disconnected", "The tunnel is down", "network-vpn-disconnected"},
		{"VPN Active", "The tunnel was already running", "network-vpn"},
	}
	if diff := cmp.Diff(want, r.sent); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestEventHandler_ErrorIsSwallowed(t *testing.T) {
	r := &recorder{err: errors.New("no bus")}
	EventHandler(r)(vpn.EventConnected)
	if len(r.sent) != 1 {
		t.Errorf("sent = %d, want 1", len(r.sent))
	}
}

func TestNew_Disabled(t *testing.T) {
	if _, ok := New(false).(Noop); !ok {
		t.Error("New(false) should return Noop")
	}
}
