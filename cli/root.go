package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yllada/vpnht/common"
	"github.com/yllada/vpnht/vpn"
)

// BuildInfo carries values injected at build time.
type BuildInfo struct {
	Version   string
	BuildTime string
	Commit    string
}

type rootFlags struct {
	verbose    bool
	configPath string
}

// NewRootCommand creates the root cobra command.
func NewRootCommand(info BuildInfo) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           common.AppName,
		Short:         "Install and control the optional OpenVPN tunnel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogging(flags.verbose)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/vpnht/config.yaml)")

	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newInstallCmd(flags))
	root.AddCommand(newConnectCmd(flags))
	root.AddCommand(newDisconnectCmd(flags))
	root.AddCommand(newIPCmd(flags))
	root.AddCommand(newWatchCmd(flags))
	root.AddCommand(newCredentialsCmd(flags))
	root.AddCommand(newSetDisabledCmd(flags, "disable", "Prevent the tunnel from being started", true))
	root.AddCommand(newSetDisabledCmd(flags, "enable", "Allow the tunnel to be started", false))
	root.AddCommand(newVersionCmd(info))
	return root
}

func initLogging(verbose bool) {
	level := common.LevelInfo
	if verbose {
		level = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:       level,
		EnableFile:  true,
		MaxFileSize: 5 * 1024 * 1024,
		MaxBackups:  5,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
}

// withCLI builds the CLI for a single command invocation and closes it
// afterwards.
func withCLI(flags *rootFlags, fn func(c *CLI, ctx context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := New(Options{ConfigPath: flags.configPath, Out: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		defer func() {
			if err := c.Close(); err != nil {
				common.LogWarn("Cleanup failed: %v", err)
			}
		}()
		return fn(c, cmd.Context())
	}
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installation and tunnel status",
		Args:  cobra.NoArgs,
		RunE:  withCLI(flags, (*CLI).Status),
	}
}

func newInstallCmd(flags *rootFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download and install OpenVPN and its configuration",
		Args:  cobra.NoArgs,
		RunE: withCLI(flags, func(c *CLI, ctx context.Context) error {
			return c.Install(ctx, force)
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "reinstall even if already installed")
	return cmd
}

func newConnectCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Start the tunnel",
		Args:  cobra.NoArgs,
		RunE:  withCLI(flags, (*CLI).Connect),
	}
}

func newDisconnectCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Stop the tunnel",
		Args:  cobra.NoArgs,
		RunE:  withCLI(flags, (*CLI).Disconnect),
	}
}

func newIPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ip",
		Short: "Print the current public IP address",
		Args:  cobra.NoArgs,
		RunE:  withCLI(flags, (*CLI).ShowIP),
	}
}

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var autoReconnect bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report tunnel state changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: withCLI(flags, func(c *CLI, ctx context.Context) error {
			return c.Watch(ctx, autoReconnect)
		}),
	}
	cmd.Flags().BoolVar(&autoReconnect, "reconnect", false, "restart the tunnel when it goes down")
	return cmd
}

func newCredentialsCmd(flags *rootFlags) *cobra.Command {
	root := &cobra.Command{Use: "credentials", Short: "Manage tunnel credentials"}

	var username string
	var passwordStdin bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Save the tunnel username and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.Context(), passwordStdin, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withCLI(flags, func(c *CLI, ctx context.Context) error {
				return c.SetCredentials(username, password)
			})(cmd, args)
		},
	}
	set.Flags().StringVar(&username, "username", "", "tunnel username")
	set.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = set.MarkFlagRequired("username")

	root.AddCommand(set)
	return root
}

// readPassword reads one line from r, or prompts on the terminal.
func readPassword(ctx context.Context, fromStdin bool, r io.Reader) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	return vpn.NewTerminalPrompter().PromptCredential(ctx, "VPN password: ")
}

func newSetDisabledCmd(flags *rootFlags, use, short string, disabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withCLI(flags, func(c *CLI, ctx context.Context) error {
			return c.SetDisabled(disabled)
		}),
	}
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s v%s\n", common.AppName, info.Version)
			if info.BuildTime != "unknown" && info.BuildTime != "" {
				fmt.Fprintf(out, "  Build:  %s\n", info.BuildTime)
				fmt.Fprintf(out, "  Commit: %s\n", info.Commit)
			}
		},
	}
}
