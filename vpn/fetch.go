package vpn

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/yllada/vpnht/common"
)

const fetchDirPrefix = "vpnht-openvpn-"

// TempDirs creates process-unique temporary directories and removes the
// tracked ones on Cleanup.
type TempDirs struct {
	root string

	mu   sync.Mutex
	dirs []string
}

// NewTempDirs returns a tracker rooted at root, or the system temp dir if
// root is empty.
func NewTempDirs(root string) *TempDirs {
	if root == "" {
		root = os.TempDir()
	}
	return &TempDirs{root: root}
}

// Mkdir creates a private directory named prefix followed by a UUID.
func (t *TempDirs) Mkdir(prefix string) (string, error) {
	dir := filepath.Join(t.root, prefix+uuid.NewString())
	if err := os.Mkdir(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	t.mu.Lock()
	t.dirs = append(t.dirs, dir)
	t.mu.Unlock()
	return dir, nil
}

// Release stops tracking dir so Cleanup leaves it in place.
func (t *TempDirs) Release(dir string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, d := range t.dirs {
		if d == dir {
			t.dirs = append(t.dirs[:i], t.dirs[i+1:]...)
			return
		}
	}
}

// Cleanup removes every tracked directory.
func (t *TempDirs) Cleanup() error {
	t.mu.Lock()
	dirs := t.dirs
	t.dirs = nil
	t.mu.Unlock()

	var firstErr error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			common.LogWarn("Failed to remove temp dir %s: %v", dir, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ArtifactFetcher downloads release artifacts into fresh temp directories.
type ArtifactFetcher interface {
	FetchTarball(ctx context.Context, url string) (string, error)
	FetchFile(ctx context.Context, url, name string) (string, error)
}

// Fetcher is the HTTP implementation of ArtifactFetcher.
type Fetcher struct {
	client  *http.Client
	temp    *TempDirs
	timeout time.Duration
}

// NewFetcher creates a Fetcher. Each fetch is bounded by timeout.
func NewFetcher(client *http.Client, temp *TempDirs, timeout time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = common.DownloadTimeout
	}
	return &Fetcher{client: client, temp: temp, timeout: timeout}
}

// FetchTarball downloads a gzipped tarball and extracts it into a new temp
// directory, returning that directory.
func (f *Fetcher) FetchTarball(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dir, err := f.temp.Mkdir(fetchDirPrefix)
	if err != nil {
		return "", err
	}

	gz, err := gzip.NewReader(body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownloadFailed, url, err)
	}
	defer gz.Close()

	if err := extractTar(gz, dir); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownloadFailed, url, err)
	}
	// The gzip checksum is only verified once the stream is read to the end.
	if _, err := io.Copy(io.Discard, gz); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownloadFailed, url, err)
	}

	common.LogDebug("Extracted %s into %s", url, dir)
	return dir, nil
}

// FetchFile downloads url into a new temp directory as name and returns
// the file path.
func (f *Fetcher) FetchFile(ctx context.Context, url, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dir, err := f.temp.Mkdir(fetchDirPrefix)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, filepath.Base(name))
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: %s: %v", ErrDownloadFailed, url, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	common.LogDebug("Downloaded %s to %s", url, path)
	return path, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned status %d", ErrDownloadFailed, url, resp.StatusCode)
	}
	return resp.Body, nil
}

// extractTar unpacks a tar stream into dest. Entries that would land
// outside dest are rejected.
func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("archive entry %s links outside archive", hdr.Name)
			}
			if _, err := safeJoin(dest, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			source, err := safeJoin(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("failed to link %s: %w", hdr.Name, err)
			}
		case tar.TypeXGlobalHeader:
		default:
			return fmt.Errorf("archive entry %s has unsupported type %c", hdr.Name, hdr.Typeflag)
		}
	}
}

func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %s escapes extraction root", name)
	}
	return target, nil
}

func writeEntry(path string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
