// Racctl - chassis management console provisioning tool
//
// A CLI that drives the racadm console of a blade chassis over SSH:
//   - Raw racadm commands and getconfig queries with parsed output
//   - Console user accounts and per-module root credentials
//   - Module network addressing with retry, polling and reachability checks
//   - Audit logging of every provisioning operation
//
// Connection flags select the console; commands act on it:
//
//	racctl -H <console> [-u <user>] [-p <password>] <command> [args]
//
// Examples:
//
//	racctl -H cmc1 exec getsysinfo                        # Raw racadm verb
//	racctl -H cmc1 getconfig -g cfgUserAdmin -o cfgUserAdminUserName -i 2
//	racctl -H cmc1 set-user 2 ops --role PowerUser
//	racctl -H cmc1 deploy-root server 3 --community public
//	racctl -H cmc1 converge server-1=dhcp server-2=10.0.0.12/255.255.255.0/10.0.0.1
//	racctl -H cmc1 converge -f chassis.yaml
//	racctl -H cmc1 shell
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/newtron-network/racctl/pkg/audit"
	"github.com/newtron-network/racctl/pkg/cli"
	"github.com/newtron-network/racctl/pkg/metrics"
	"github.com/newtron-network/racctl/pkg/provision"
	"github.com/newtron-network/racctl/pkg/racadm"
	"github.com/newtron-network/racctl/pkg/settings"
	"github.com/newtron-network/racctl/pkg/util"
	"github.com/newtron-network/racctl/pkg/version"
)

var (
	// Global option flags (connection flags are settings keys, see addSettingsFlags)
	password     string
	settingsPath string
	verbose      bool
	jsonOutput   bool
	metricsFile  string

	// Global state
	cfg    *settings.Settings
	runID  string
	closer func() error
)

func main() {
	err := rootCmd.Execute()
	if closer != nil {
		closer()
	}
	if metricsFile != "" {
		if werr := metrics.WriteTextfile(metricsFile); werr != nil {
			fmt.Fprintln(os.Stderr, "writing metrics:", werr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "racctl",
	Short:             "Chassis management console provisioning tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Racctl drives the racadm console of a blade chassis over SSH.

Connection flags select the console; defaults come from the settings file
(` + "`racctl settings path`" + `) and RACCTL_* environment variables.

  racctl -H <console> <command> [args]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		// Set log level: quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if jsonOutput {
			util.SetJSONFormat()
		}

		var err error
		cfg, err = settings.Load(settingsPath, cmd.Flags())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		runID = audit.NewRunID()

		if path := auditPath(cfg); path != "" {
			auditLogger, err := audit.NewFileLogger(path, audit.RotationConfig{
				MaxSize:    10 * 1024 * 1024, // 10MB
				MaxBackups: 10,
			})
			if err != nil {
				util.Warnf("Could not initialize audit logging: %v", err)
			} else {
				audit.SetDefaultLogger(auditLogger)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Console password (prompted when omitted; env RACCTL_PASSWORD)")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", settings.DefaultSettingsPath(), "Settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write prometheus metrics to this textfile on exit")
	addSettingsFlags(rootCmd.PersistentFlags())

	// ============================================================================
	// Command Groups
	// ============================================================================

	rootCmd.AddGroup(
		&cobra.Group{ID: "query", Title: "Console Queries:"},
		&cobra.Group{ID: "provision", Title: "Provisioning:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{execCmd, getconfigCmd, nicCmd, shellCmd} {
		cmd.GroupID = "query"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{setUserCmd, deployRootCmd, setNetworkCmd, convergeCmd, snmpCheckCmd} {
		cmd.GroupID = "provision"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion("racctl")
	},
}

func printVersion(tool string) {
	if version.Version == "dev" {
		fmt.Printf("%s dev build (use 'make build' for version info)\n", tool)
	} else {
		fmt.Printf("%s %s\n", tool, version.Info())
	}
}

// addSettingsFlags registers one flag per settings key, named with dashes so
// settings.Load can bind it. Defaults are left to the settings layer.
func addSettingsFlags(fs *pflag.FlagSet) {
	shorthand := map[string]string{"host": "H", "user": "u"}
	for _, k := range settings.Keys {
		name := strings.ReplaceAll(k.Name, "_", "-")
		short := shorthand[k.Name]
		switch k.Default.(type) {
		case int:
			fs.IntP(name, short, 0, k.Help)
		case float64:
			fs.Float64P(name, short, 0, k.Help)
		case bool:
			fs.BoolP(name, short, false, k.Help)
		case time.Duration:
			fs.DurationP(name, short, 0, k.Help)
		default:
			fs.StringP(name, short, "", k.Help)
		}
	}
}

// auditPath resolves the audit_log setting; "default" selects the file next to the settings.
func auditPath(s *settings.Settings) string {
	if s.AuditLog == "default" {
		return settings.DefaultAuditLogPath()
	}
	return s.AuditLog
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// ============================================================================
// Connection Helpers
// ============================================================================

// commandContext returns a context cancelled on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// consolePassword resolves the login password: flag, RACCTL_PASSWORD, then a terminal prompt.
func consolePassword() (string, error) {
	if password != "" {
		return resolveSecret(password)
	}
	if env := os.Getenv(settings.EnvPrefix + "_PASSWORD"); env != "" {
		return env, nil
	}
	return promptSecret(fmt.Sprintf("Password for %s@%s", cfg.User, cfg.Host))
}

// promptSecret reads a value from the terminal with echo disabled.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s required and no terminal available for a prompt", strings.ToLower(label))
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// resolveSecret expands "env:NAME" and "file:PATH" references so secrets stay
// off the command line. Other values pass through.
func resolveSecret(value string) (string, error) {
	switch {
	case strings.HasPrefix(value, "env:"):
		name := strings.TrimPrefix(value, "env:")
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return v, nil
	case strings.HasPrefix(value, "file:"):
		data, err := os.ReadFile(strings.TrimPrefix(value, "file:"))
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	default:
		return value, nil
	}
}

// connect dials the console and returns a client. The session is closed after the command runs.
func connect(ctx context.Context) (*racadm.Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("console host required: use -H <host> or 'racctl settings set host <host>'")
	}
	pw, err := consolePassword()
	if err != nil {
		return nil, err
	}

	transport, err := racadm.DialSSH(ctx, racadm.SSHConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       pw,
		Prompt:         cfg.Prompt,
		KnownHosts:     cfg.KnownHosts,
		CommandTimeout: cfg.CommandTimeout,
	})
	if err != nil {
		return nil, err
	}
	closer = transport.Close

	opts := []racadm.Option{racadm.WithLogger(util.WithDevice(cfg.Host))}
	if cfg.RateLimit > 0 {
		opts = append(opts, racadm.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)))
	}
	return racadm.NewClient(transport, opts...), nil
}

// connectProvisioner connects and wraps the client with audit identity.
func connectProvisioner(ctx context.Context) (*provision.Provisioner, error) {
	client, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	return provision.New(client,
		provision.WithLogger(client.Logger().WithField("run", runID)),
		provision.WithAuditContext(cfg.Host, cfg.User, runID),
		provision.WithCredentials(provision.Credentials{Password: resolveSecret, Community: resolveSecret}),
	), nil
}

// ============================================================================
// Output Helpers
// ============================================================================

// printResponse prints a parsed reply as a table of fields, plain lines, or JSON.
func printResponse(resp racadm.Response) error {
	if jsonOutput {
		return printJSON(resp)
	}
	if fields, ok := resp.Fields(); ok {
		t := cli.NewTable("KEY", "VALUE")
		for _, k := range fields.Keys() {
			v, _ := fields.Get(k)
			t.Row(k, v)
		}
		t.Flush()
		return nil
	}
	for _, line := range resp.Text() {
		fmt.Println(line)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Color helpers delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
