package vpn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/yllada/vpnht/common"
)

// Elevator runs a command with administrator privileges and waits for it.
type Elevator interface {
	RunElevated(ctx context.Context, name string, args ...string) error
}

// CommandRunner starts name with args, feeds stdin (may be nil) and waits
// for it to exit.
type CommandRunner func(ctx context.Context, stdin io.Reader, name string, args ...string) error

// execRunner is the os/exec CommandRunner.
func execRunner(ctx context.Context, stdin io.Reader, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	setCommandLine(cmd)
	// A daemonized child may inherit our pipes.
	cmd.WaitDelay = 5 * time.Second

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		common.LogDebug("%s: %s", name, strings.TrimSpace(string(out)))
	}
	return err
}

// Session holds the sudo credential for the lifetime of the process. The
// prompter is asked at most once successfully; the value is never
// invalidated.
type Session struct {
	prompter Prompter

	mu         sync.Mutex
	credential string
	cached     bool
}

// NewSession creates a credential session backed by prompter.
func NewSession(prompter Prompter) *Session {
	return &Session{prompter: prompter}
}

// Credential returns the cached credential, prompting for it on first use.
func (s *Session) Credential(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached {
		return s.credential, nil
	}
	if s.prompter == nil {
		return "", common.ErrNoCredential
	}

	credential, err := s.prompter.PromptCredential(ctx, "Administrator password required to manage the VPN tunnel: ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrNoCredential, err)
	}
	if credential == "" {
		return "", common.ErrNoCredential
	}

	s.credential = credential
	s.cached = true
	return credential, nil
}

// SudoElevator runs commands through "sudo -S" with the session credential.
type SudoElevator struct {
	session *Session
	run     CommandRunner
	timeout time.Duration
}

// NewSudoElevator creates the linux elevator.
func NewSudoElevator(session *Session, timeout time.Duration) *SudoElevator {
	return &SudoElevator{session: session, run: execRunner, timeout: timeout}
}

// RunElevated implements Elevator.
func (e *SudoElevator) RunElevated(ctx context.Context, name string, args ...string) error {
	credential, err := e.session.Credential(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	sudoArgs := append([]string{"-S", "-p", "", name}, args...)
	common.LogDebug("Running elevated: %s %s", name, strings.Join(args, " "))
	err = e.run(ctx, strings.NewReader(credential+"\n"), "sudo", sudoArgs...)
	return classifyRunError(ctx, name, err)
}

// HelperElevator uses the downloaded runas helper when present and the
// platform's native prompt otherwise (mac and windows).
type HelperElevator struct {
	platform   Platform
	helperPath string
	run        CommandRunner
	timeout    time.Duration
}

// NewHelperElevator creates the helper-family elevator for cfg.
func NewHelperElevator(cfg InstallConfig, timeout time.Duration) *HelperElevator {
	return &HelperElevator{
		platform:   cfg.Platform,
		helperPath: cfg.HelperPath(),
		run:        execRunner,
		timeout:    timeout,
	}
}

// RunElevated implements Elevator.
func (e *HelperElevator) RunElevated(ctx context.Context, name string, args ...string) error {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	if common.FileExists(e.helperPath) {
		common.LogDebug("Running elevated via helper: %s %s", name, strings.Join(args, " "))
		err := e.run(ctx, nil, e.helperPath, append([]string{name}, args...)...)
		return classifyRunError(ctx, name, err)
	}

	native, nativeArgs, err := nativeElevation(e.platform, name, args)
	if err != nil {
		return err
	}
	common.LogDebug("Running elevated via %s: %s %s", native, name, strings.Join(args, " "))
	err = e.run(ctx, nil, native, nativeArgs...)
	return classifyRunError(ctx, name, err)
}

// NewElevator picks the elevator family for the platform in cfg.
func NewElevator(cfg InstallConfig, session *Session, timeout time.Duration) (Elevator, error) {
	switch cfg.Platform {
	case PlatformLinux:
		return NewSudoElevator(session, timeout), nil
	case PlatformMac, PlatformWindows:
		return NewHelperElevator(cfg, timeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, cfg.Platform)
	}
}

// nativeElevation builds the OS prompt invocation for name and args.
func nativeElevation(platform Platform, name string, args []string) (string, []string, error) {
	switch platform {
	case PlatformMac:
		script := fmt.Sprintf("do shell script %s with administrator privileges",
			appleScriptString(shellCommand(name, args)))
		return "osascript", []string{"-e", script}, nil
	case PlatformWindows:
		command := fmt.Sprintf("$p = Start-Process -FilePath %s", powerShellString(name))
		if len(args) > 0 {
			command += " -ArgumentList " + powerShellString(windowsCommandLine(args))
		}
		command += " -Verb RunAs -Wait -PassThru; exit $p.ExitCode"
		return "powershell.exe", []string{"-NoProfile", "-NonInteractive", "-Command", command}, nil
	default:
		return "", nil, fmt.Errorf("%w: no native elevation for %s", ErrUnsupportedPlatform, platform)
	}
}

// shellCommand joins name and args into a POSIX shell command line.
func shellCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, s := range append([]string{name}, args...) {
		parts = append(parts, "'"+strings.ReplaceAll(s, "'", `'\''`)+"'")
	}
	return strings.Join(parts, " ")
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func powerShellString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// windowsCommandLine quotes args using the CommandLineToArgvW rules. A
// trailing NSIS "/D=" argument is passed unquoted since NSIS reads the rest
// of the command line as the directory.
func windowsCommandLine(args []string) string {
	quoted := make([]string, 0, len(args))
	for i, arg := range args {
		if i == len(args)-1 && i > 0 && strings.HasPrefix(arg, nsisDirFlag) {
			quoted = append(quoted, arg)
			continue
		}
		quoted = append(quoted, windowsQuoteArg(arg))
	}
	return strings.Join(quoted, " ")
}

func windowsQuoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"") {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, slashes*2+1))
			slashes = 0
		default:
			b.WriteString(strings.Repeat(`\`, slashes))
			slashes = 0
		}
		if c != '\\' {
			b.WriteByte(c)
		}
	}
	b.WriteString(strings.Repeat(`\`, slashes*2))
	b.WriteByte('"')
	return b.String()
}

// classifyRunError turns a runner error into a typed elevation error.
func classifyRunError(ctx context.Context, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", name, common.ErrTimeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s exited with code %d", ErrElevationFailed, name, exitErr.ExitCode())
	}
	return fmt.Errorf("%w: %v", ErrRunas, err)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = common.ElevationTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
