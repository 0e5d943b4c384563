package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/racctl/pkg/cli"
	"github.com/newtron-network/racctl/pkg/converge"
	"github.com/newtron-network/racctl/pkg/plan"
	"github.com/newtron-network/racctl/pkg/provision"
	"github.com/newtron-network/racctl/pkg/settings"
)

var planFile string

var convergeCmd = &cobra.Command{
	Use:   "converge [<module>=dhcp | <module>=<ip>/<mask>/<gateway>]...",
	Short: "Apply addressing to modules and wait until they are reachable",
	Long: `Apply addressing to a batch of modules and wait until each one reports
its address and answers a ping.

Phases:
  1. setniccfg on every target
  2. retry targets whose reply contained ERROR (up to 5 more times)
  3. poll getniccfg until the address is reported
  4. probe the address until it answers

With -f the plan file also deploys root credentials and configures users
before the targets run. Targets are grouped by module type.

Examples:
  racctl -H cmc1 converge server-1=dhcp server-2=dhcp
  racctl -H cmc1 converge switch-1=10.0.0.21/255.255.255.0/10.0.0.1
  racctl -H cmc1 converge -f chassis.yaml --parallel --probe icmp`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var p *plan.Plan
		var targets []converge.Target
		var err error
		switch {
		case planFile != "" && len(args) > 0:
			return fmt.Errorf("use either -f or target arguments, not both")
		case planFile != "":
			if p, err = plan.Load(planFile); err != nil {
				return err
			}
			if targets, err = p.ConvergeTargets(); err != nil {
				return err
			}
			if cfg.Host == "" {
				cfg.Host = p.Device
			}
		case len(args) > 0:
			if targets, err = parseTargets(args); err != nil {
				return err
			}
		default:
			return fmt.Errorf("no targets: pass <module>=<addressing> arguments or -f <plan>")
		}
		if err := converge.Validate(targets); err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()
		prov, err := connectProvisioner(ctx)
		if err != nil {
			return err
		}

		if p != nil {
			if err := applyPlanCredentials(ctx, prov, p); err != nil {
				return err
			}
		}
		if len(targets) == 0 {
			return nil
		}

		orch := converge.New(prov, newProber(cfg), convergeOptions(cfg), prov.Logger())
		fmt.Printf("Converging %d target(s) on %s (run %s)\n\n", len(targets), bold(cfg.Host), runID)
		report, runErr := orch.Run(ctx, targets)
		if report != nil {
			if jsonOutput {
				if err := printJSON(reportJSON(report)); err != nil {
					return err
				}
			} else {
				printReport(report)
			}
		}
		return runErr
	},
}

// applyPlanCredentials deploys root credentials, then configures users.
// resultWidth is the dot-padded label width of plan credential results.
const resultWidth = 40

func applyPlanCredentials(ctx context.Context, prov *provision.Provisioner, p *plan.Plan) error {
	for _, rc := range p.Root {
		resp, err := prov.SetRootCredentials(ctx, rc.Password, rc.ModuleType, rc.Slot, rc.Community)
		if err != nil {
			return err
		}
		label := cli.DotPad("root credentials on "+rc.Module(), resultWidth)
		if provision.ApplyFailed(resp) {
			fmt.Printf("%s %s: %s\n", label, red("FAILED"), resp)
			continue
		}
		fmt.Printf("%s %s\n", label, green("OK"))
	}
	for _, acct := range p.Accounts() {
		result, err := prov.SetUser(ctx, acct)
		if err != nil {
			return err
		}
		label := cli.DotPad(fmt.Sprintf("user %s at index %d", acct.Name, acct.Index), resultWidth)
		if !result.OK() {
			fmt.Printf("%s %s: %s\n", label, yellow("PARTIAL"), strings.Join(result.Failed, ", "))
			continue
		}
		fmt.Printf("%s %s\n", label, green("OK"))
	}
	if len(p.Root) > 0 || len(p.Users) > 0 {
		fmt.Println()
	}
	return nil
}

// parseTargets reads "<type>-<slot>=dhcp" and "<type>-<slot>=ip/mask/gw".
func parseTargets(args []string) ([]converge.Target, error) {
	targets := make([]converge.Target, 0, len(args))
	for _, arg := range args {
		module, addressing, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("target %q: expected <module>=<addressing>", arg)
		}
		i := strings.LastIndex(module, "-")
		if i <= 0 || i == len(module)-1 {
			return nil, fmt.Errorf("target %q: module must be <type>-<slot>", arg)
		}
		a := provision.DHCPAddressing()
		if !strings.EqualFold(addressing, "dhcp") {
			var err error
			if a, err = parseStatic(addressing); err != nil {
				return nil, fmt.Errorf("target %q: %w", arg, err)
			}
		}
		targets = append(targets, converge.Target{ModuleType: module[:i], Slot: module[i+1:], Addressing: a})
	}
	return targets, nil
}

func newProber(s *settings.Settings) converge.Prober {
	if s.Probe == settings.ProbeICMP {
		return &converge.ICMPProber{}
	}
	return nil
}

func convergeOptions(s *settings.Settings) converge.Options {
	opts := converge.DefaultOptions()
	opts.ApplyRetryDelay = s.ApplyRetryDelay
	opts.PollInterval = s.PollInterval
	opts.ProbeInterval = s.ProbeInterval
	opts.HaltOnTimeout = s.HaltOnTimeout
	opts.Parallel = s.Parallel
	opts.Device = s.Host
	opts.User = s.User
	opts.RunID = runID
	return opts
}

func printReport(report *converge.Report) {
	t := cli.NewTable("TARGET", "ADDRESSING", "STATE", "APPLY", "POLLS", "PROBES", "ADDRESS", "DURATION")
	for _, o := range report.Outcomes {
		t.Row(o.Target.Name(), o.Target.Addressing.String(), cli.State(string(o.State())),
			fmt.Sprint(o.ApplyAttempts), fmt.Sprint(o.Polls), fmt.Sprint(o.Probes),
			cli.OrNotSet(o.Address), o.Duration.Round(time.Second).String())
	}
	t.Flush()

	for _, o := range report.Outcomes {
		if o.Err != nil {
			fmt.Printf("  %s: %v\n", o.Target.Name(), o.Err)
		}
	}

	counts := report.Counts()
	fmt.Printf("\n%d converged, %d timed out, %d gave up in %s\n",
		counts[converge.StateConnectivityConfirmed], counts[converge.StateTimedOut], counts[converge.StateGaveUp],
		report.Duration.Round(time.Second))
	if report.Converged() {
		fmt.Println(green("All targets reachable."))
	}
}

type outcomeJSON struct {
	Target     string `json:"target"`
	Addressing string `json:"addressing"`
	State      string `json:"state"`
	Apply      int    `json:"apply_attempts"`
	Polls      int    `json:"polls"`
	Probes     int    `json:"probes"`
	Address    string `json:"address,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func reportJSON(report *converge.Report) map[string]any {
	outcomes := make([]outcomeJSON, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		oj := outcomeJSON{
			Target:     o.Target.Name(),
			Addressing: o.Target.Addressing.String(),
			State:      string(o.State()),
			Apply:      o.ApplyAttempts,
			Polls:      o.Polls,
			Probes:     o.Probes,
			Address:    o.Address,
			DurationMs: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			oj.Error = o.Err.Error()
		}
		outcomes = append(outcomes, oj)
	}
	return map[string]any{
		"run_id":      runID,
		"device":      cfg.Host,
		"converged":   report.Converged(),
		"duration_ms": report.Duration.Milliseconds(),
		"outcomes":    outcomes,
	}
}

func init() {
	convergeCmd.Flags().StringVarP(&planFile, "file", "f", "", "Plan file (root credentials, users, targets)")
}

