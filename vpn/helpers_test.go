package vpn

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
)

type memSettings struct {
	mu     sync.Mutex
	bools  map[string]bool
	values map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{bools: map[string]bool{}, values: map[string]string{}}
}

func (s *memSettings) GetBool(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bools[key], nil
}

func (s *memSettings) SetBool(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bools[key] = value
	return nil
}

func (s *memSettings) GetString(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *memSettings) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// recordingElevator records every elevated command and runs an optional
// hook in place of the real command.
type recordingElevator struct {
	mu    sync.Mutex
	calls [][]string
	hook  func(name string, args []string) error
}

func (e *recordingElevator) RunElevated(ctx context.Context, name string, args ...string) error {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string{name}, args...))
	hook := e.hook
	e.mu.Unlock()
	if hook != nil {
		return hook(name, args)
	}
	return nil
}

func (e *recordingElevator) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.calls...)
}

type staticProber struct {
	ip  string
	err error
}

func (p *staticProber) Probe(ctx context.Context) (string, error) {
	return p.ip, p.err
}

// linuxConfig returns an install config rooted in a temp home.
func linuxConfig(t *testing.T) InstallConfig {
	t.Helper()
	home := t.TempDir()
	cfg, err := ResolveInstallConfig("linux", "amd64", func(key string) string {
		if key == "HOME" {
			return home
		}
		return ""
	})
	if err != nil {
		t.Fatalf("ResolveInstallConfig() error = %v", err)
	}
	return cfg
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// tarball builds a gzipped tar from name -> content. Names ending in "/"
// are directories.
func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0755, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if strings.HasSuffix(name, "/") {
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader() error = %v", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(content)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close() error = %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip Close() error = %v", err)
	}
	return buf.Bytes()
}
