package vpn

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yllada/vpnht/common"
)

// validateClientConfig checks that path is a usable OpenVPN client
// configuration.
func validateClientConfig(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return common.ErrInvalidConfig
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ovpn" && ext != ".conf" {
		return fmt.Errorf("%w: expected .ovpn or .conf extension", common.ErrInvalidConfig)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty file", common.ErrInvalidConfig)
	}

	for _, directive := range []string{"remote", "client"} {
		if strings.Contains(content, directive) {
			return nil
		}
	}
	return fmt.Errorf("%w: missing required OpenVPN directives", common.ErrInvalidConfig)
}

// writeServiceConfig copies the client config to dst for the Windows
// service and appends an auth-user-pass directive pointing at authPath.
func writeServiceConfig(src, dst, authPath string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	directive := "\r\nauth-user-pass " + strings.ReplaceAll(authPath, `\`, `\\`)
	data = append(data, directive...)
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// writeAuthFile writes "username\npassword" with owner-only permissions.
func writeAuthFile(dir, username, password string) (string, error) {
	path := filepath.Join(dir, "pass.txt")
	if err := os.WriteFile(path, []byte(username+"\n"+password), 0600); err != nil {
		return "", fmt.Errorf("failed to write auth file: %w", err)
	}
	return path, nil
}
