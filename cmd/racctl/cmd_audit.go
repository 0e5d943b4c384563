package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/racctl/pkg/audit"
	"github.com/newtron-network/racctl/pkg/cli"
	"github.com/newtron-network/racctl/pkg/settings"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View the audit trail of provisioning operations.

Every user, root credential and network change is logged with:
  - Timestamp and run ID
  - Console and login user
  - Operation and target module
  - Final state, attempts and success/failure

Auditing is enabled with 'racctl settings set audit_log default' (or a path).

Examples:
  racctl audit list --target server-1
  racctl audit list --last 24h --failures
  racctl audit list --run 6f1c...`,
}

var (
	auditDevice    string
	auditUser      string
	auditTarget    string
	auditOperation string
	auditRun       string
	auditLast      string
	auditLimit     int
	auditFailures  bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Device:      auditDevice,
			User:        auditUser,
			Target:      auditTarget,
			Operation:   auditOperation,
			RunID:       auditRun,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		// Parse --last duration
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		path := auditPath(cfg)
		if path == "" {
			path = settings.DefaultAuditLogPath()
		}
		logger, err := audit.NewFileLogger(path, audit.RotationConfig{})
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer logger.Close()

		events, err := logger.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return printJSON(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "USER", "DEVICE", "OPERATION", "TARGET", "STATE", "STATUS")
		for _, event := range events {
			status := green("ok")
			if !event.Success {
				status = red("failed")
			}
			state := ""
			if event.State != "" {
				state = cli.State(event.State)
			}
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Device,
				event.Operation,
				event.Target,
				state,
				status,
			)
		}
		t.Flush()

		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by console host")
	auditListCmd.Flags().StringVar(&auditUser, "by", "", "Filter by login user")
	auditListCmd.Flags().StringVar(&auditTarget, "target", "", "Filter by target module")
	auditListCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation (set-user, deploy-root, set-network)")
	auditListCmd.Flags().StringVar(&auditRun, "run", "", "Filter by run ID")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
}
