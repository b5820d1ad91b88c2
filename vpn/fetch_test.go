package vpn

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

func newTestFetcher(t *testing.T, handler http.Handler) (*Fetcher, *TempDirs, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	temp := NewTempDirs(t.TempDir())
	return NewFetcher(server.Client(), temp, 5*time.Second), temp, server.URL
}

func TestFetcher_FetchTarball(t *testing.T) {
	archive := tarball(t, map[string]string{
		"openvpn":       "binary",
		"lib/":          "",
		"lib/libssl.so": "lib",
	})
	fetcher, _, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))

	dir, err := fetcher.FetchTarball(context.Background(), base+"/openvpn-linux-x64.tar.gz")
	if err != nil {
		t.Fatalf("FetchTarball() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(dir), fetchDirPrefix) {
		t.Errorf("temp dir %s does not use prefix %s", dir, fetchDirPrefix)
	}

	data, err := os.ReadFile(filepath.Join(dir, "openvpn"))
	if err != nil || string(data) != "binary" {
		t.Errorf("openvpn = %q, %v", data, err)
	}
	info, err := os.Stat(filepath.Join(dir, "openvpn"))
	if err == nil && info.Mode().Perm()&0100 == 0 {
		t.Errorf("openvpn mode = %v, want executable", info.Mode())
	}
	if _, err := os.Stat(filepath.Join(dir, "lib", "libssl.so")); err != nil {
		t.Errorf("nested file missing: %v", err)
	}
}

func TestFetcher_FetchFile(t *testing.T) {
	fetcher, _, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("client\nremote vpn.example.com 1194\n"))
	}))

	path, err := fetcher.FetchFile(context.Background(), base+"/openvpn.conf", "openvpn.conf")
	if err != nil {
		t.Fatalf("FetchFile() error = %v", err)
	}
	if filepath.Base(path) != "openvpn.conf" {
		t.Errorf("FetchFile() path = %v", path)
	}
	if err := validateClientConfig(path); err != nil {
		t.Errorf("validateClientConfig() error = %v", err)
	}
}

func TestFetcher_Errors(t *testing.T) {
	fetcher, _, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			w.Write([]byte("not gzip"))
		}
	}))

	tests := []struct {
		name string
		run  func() error
	}{
		{"not found file", func() error {
			_, err := fetcher.FetchFile(context.Background(), base+"/missing", "x")
			return err
		}},
		{"not found tarball", func() error {
			_, err := fetcher.FetchTarball(context.Background(), base+"/missing")
			return err
		}},
		{"bad gzip", func() error {
			_, err := fetcher.FetchTarball(context.Background(), base+"/garbage")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, ErrDownloadFailed) {
				t.Errorf("error = %v, want ErrDownloadFailed", err)
			}
		})
	}
}

func TestExtractTar_RejectsEscape(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	tw.WriteHeader(&tar.Header{Name: "../evil", Mode: 0644, Size: 1, Typeflag: tar.TypeReg})
	tw.Write([]byte("x"))
	tw.Close()
	gz.Close()

	gr, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	dest := filepath.Join(t.TempDir(), "out")
	if err := os.Mkdir(dest, 0755); err != nil {
		t.Fatal(err)
	}
	if err := extractTar(gr, dest); err == nil {
		t.Error("extractTar() accepted an escaping entry")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "evil")); err == nil {
		t.Error("escaping entry was written")
	}
}

func TestTempDirs_CleanupAndRelease(t *testing.T) {
	temp := NewTempDirs(t.TempDir())

	a, err := temp.Mkdir("vpnht-a-")
	if err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	b, err := temp.Mkdir("vpnht-b-")
	if err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	if a == b {
		t.Fatal("Mkdir() returned the same directory twice")
	}
	info, _ := os.Stat(a)
	if info.Mode().Perm() != 0700 {
		t.Errorf("temp dir mode = %v, want 0700", info.Mode().Perm())
	}

	temp.Release(b)
	if err := temp.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Errorf("tracked dir still exists: %v", err)
	}
	if _, err := os.Stat(b); err != nil {
		t.Errorf("released dir was removed: %v", err)
	}
}

// extractHeaders extracts a tar made of hdrs into a fresh directory.
// Regular entries get the content "data".
func extractHeaders(t *testing.T, hdrs ...*tar.Header) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, hdr := range hdrs {
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len("data"))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader() error = %v", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			tw.Write([]byte("data"))
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "out")
	if err := os.Mkdir(dest, 0755); err != nil {
		t.Fatal(err)
	}
	return dest, extractTar(&buf, dest)
}

func TestExtractTar_HardLink(t *testing.T) {
	dest, err := extractHeaders(t,
		&tar.Header{Name: "sbin/openvpn", Mode: 0755, Typeflag: tar.TypeReg},
		&tar.Header{Name: "openvpn", Linkname: "sbin/openvpn", Mode: 0755, Typeflag: tar.TypeLink},
	)
	if err != nil {
		t.Fatalf("extractTar() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "openvpn"))
	if err != nil || string(data) != "data" {
		t.Errorf("openvpn = %q, %v; want linked content", data, err)
	}
}

func TestExtractTar_RejectedEntries(t *testing.T) {
	tests := []struct {
		name string
		hdrs []*tar.Header
	}{
		{"hard link escape", []*tar.Header{
			{Name: "openvpn", Linkname: "../../etc/passwd", Typeflag: tar.TypeLink},
		}},
		{"hard link missing target", []*tar.Header{
			{Name: "openvpn", Linkname: "sbin/openvpn", Typeflag: tar.TypeLink},
		}},
		{"fifo", []*tar.Header{
			{Name: "pipe", Mode: 0644, Typeflag: tar.TypeFifo},
		}},
		{"char device", []*tar.Header{
			{Name: "dev/null", Mode: 0644, Typeflag: tar.TypeChar},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := extractHeaders(t, tt.hdrs...); err == nil {
				t.Error("extractTar() succeeded, want error")
			}
		})
	}
}

func TestFetcher_FetchTarballBadChecksum(t *testing.T) {
	archive := tarball(t, map[string]string{"openvpn": "binary"})
	corrupt := append([]byte(nil), archive...)
	// The gzip trailer is CRC-32 followed by the input size.
	corrupt[len(corrupt)-8] ^= 0xff

	fetcher, _, base := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(corrupt)
	}))

	if _, err := fetcher.FetchTarball(context.Background(), base+"/openvpn-linux-x64.tar.gz"); !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("FetchTarball() error = %v, want ErrDownloadFailed", err)
	}
}
