package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want []string
	}{
		{"dev", BuildInfo{Version: "dev", BuildTime: "unknown"}, []string{"vpnht vdev"}},
		{"release", BuildInfo{Version: "1.2.0", BuildTime: "2026-01-01", Commit: "abc123"}, []string{"vpnht v1.2.0", "Build:  2026-01-01", "Commit: abc123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", t.TempDir())
			cmd := NewRootCommand(tt.info)
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"version"})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("execute: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q: %s", want, out.String())
				}
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand(BuildInfo{Version: "dev"})
	want := []string{"status", "install", "connect", "disconnect", "ip", "watch", "credentials", "disable", "enable", "version"}
	for _, name := range want {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
}

func TestReadPassword_Stdin(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"s3cret\n", "s3cret"},
		{"s3cret\r\n", "s3cret"},
		{"no-newline", "no-newline"},
	}

	for _, tt := range tests {
		got, err := readPassword(context.Background(), true, strings.NewReader(tt.input))
		if err != nil || got != tt.want {
			t.Errorf("readPassword(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}
