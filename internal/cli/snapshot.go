package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/archmcp/mcpd/pkg/config"
	"github.com/archmcp/mcpd/pkg/executor"
	"github.com/archmcp/mcpd/pkg/serviced"
	"github.com/archmcp/mcpd/pkg/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Operate the rollback snapshot catalog directly",
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)

	snapshotCreateCmd.Flags().StringVar(&snapshotDescription, "description", "", "human-readable description")
	snapshotCreateCmd.Flags().StringSliceVar(&snapshotFiles, "file", nil, "file path to capture (repeatable)")
	snapshotCreateCmd.Flags().StringSliceVar(&snapshotServices, "service", nil, "systemd unit name to capture (repeatable)")
}

var (
	snapshotDescription string
	snapshotFiles       []string
	snapshotServices    []string
)

func openStore() (*snapshot.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	exec := executor.New(cfg.Security.AllowedCommands, nil)
	svcProvider := serviced.New(exec)
	dir := filepath.Join(cfg.Logging.LogDir, "..", "snapshots")
	return snapshot.New(dir, svcProvider, nil, nil), nil
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored snapshot, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		summaries, err := store.ListSnapshots()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			cmd.Println("no snapshots")
			return nil
		}
		for _, s := range summaries {
			cmd.Printf("%s  %s  files=%d services=%d  %s\n", s.ID, s.CreatedAt.Format("2006-01-02T15:04:05"), s.FileCount, s.ServiceCount, s.Description)
		}
		return nil
	},
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Capture the given files and service states into a new snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		id, err := store.CreateSnapshot(context.Background(), snapshotDescription, snapshotFiles, snapshotServices)
		if err != nil {
			return err
		}
		cmd.Println(id)
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a snapshot's captured files and converge its service states",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.RestoreSnapshot(context.Background(), args[0]); err != nil {
			return err
		}
		cmd.Println("restored")
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snapshot record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.DeleteSnapshot(args[0]); err != nil {
			return err
		}
		cmd.Println("deleted")
		return nil
	},
}
