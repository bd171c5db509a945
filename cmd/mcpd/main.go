// Command mcpd is the Arch Linux MCP control-plane daemon: it exposes MCP
// over JSON-RPC 2.0 for privileged system automation, and a snapshot CLI
// over the same rollback substrate the daemon uses internally.
package main

import (
	"fmt"
	"os"

	"github.com/archmcp/mcpd/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cli.SetVersionInfo(version, commit)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
