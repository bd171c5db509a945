// Package cli implements mcpd's command-line surface: `serve` runs the
// daemon, `snapshot` operates the rollback substrate directly, without
// going through the MCP wire protocol.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"

	cfgFile string
)

// SetVersionInfo records build-time version info shown by `mcpd version`.
func SetVersionInfo(v, c string) {
	version = v
	commit = c
}

var rootCmd = &cobra.Command{
	Use:   "mcpd",
	Short: "Local control-plane daemon exposing MCP over JSON-RPC 2.0",
	Long: `mcpd is a local control-plane daemon for a workstation-class Linux
system. It exposes the Model Context Protocol over JSON-RPC 2.0 so external
automation clients can discover and invoke privileged system actions —
package management, service control, disk partitioning and OS bootstrap,
window-manager IPC, screen capture — and read system resources, all through
an audited, allowlisted, snapshot-backed core.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (built-in defaults are used when omitted)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("mcpd %s (%s)\n", version, commit)
		return nil
	},
}
