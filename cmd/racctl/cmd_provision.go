package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/racctl/pkg/provision"
)

var (
	userRole     string
	userPassword string
	userDisabled bool
)

var setUserCmd = &cobra.Command{
	Use:   "set-user <index> <name>",
	Short: "Configure a console user account",
	Long: `Configure the console user account slot at <index>.

Name, password, privilege and enabled flag are written in that order. A
step the console does not confirm is reported and the remaining steps
still run; nothing is rolled back.

Roles: Administrator, PowerUser, GuestUser, None

Examples:
  racctl -H cmc1 set-user 2 ops --role PowerUser
  racctl -H cmc1 set-user 3 audit --role GuestUser --user-password env:AUDIT_PW
  racctl -H cmc1 set-user 4 old --role None --disabled`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[0], err)
		}
		acct := provision.UserAccount{
			Name:     args[1],
			Password: userPassword,
			Role:     userRole,
			Enabled:  !userDisabled,
			Index:    index,
		}
		// Fail fast before prompting or connecting.
		if err := acct.Validate(); err != nil {
			return err
		}
		if acct.Password == "" {
			if acct.Password, err = promptSecret(fmt.Sprintf("New password for %s", acct.Name)); err != nil {
				return err
			}
		}

		ctx, cancel := commandContext()
		defer cancel()
		p, err := connectProvisioner(ctx)
		if err != nil {
			return err
		}
		result, err := p.SetUser(ctx, acct)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(result)
		}
		if !result.OK() {
			return fmt.Errorf("user at index %d: console did not confirm %s", index, strings.Join(result.Failed, ", "))
		}
		fmt.Println(green(fmt.Sprintf("User %s configured at index %d.", acct.Name, index)))
		return nil
	},
}

var (
	rootPassword  string
	rootCommunity string
)

var deployRootCmd = &cobra.Command{
	Use:   "deploy-root <module-type> <slot>",
	Short: "Deploy root credentials to a module",
	Long: `Deploy the root password, and optionally a read-only SNMPv2 community,
to the module <module-type>-<slot> with racadm deploy.

Examples:
  racctl -H cmc1 deploy-root server 3
  racctl -H cmc1 deploy-root switch 1 --root-password file:/run/secrets/root --community public`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw := rootPassword
		if pw == "" {
			var err error
			if pw, err = promptSecret(fmt.Sprintf("Root password for %s-%s", args[0], args[1])); err != nil {
				return err
			}
		}

		ctx, cancel := commandContext()
		defer cancel()
		p, err := connectProvisioner(ctx)
		if err != nil {
			return err
		}
		resp, err := p.SetRootCredentials(ctx, pw, args[0], args[1], rootCommunity)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		if provision.ApplyFailed(resp) {
			return fmt.Errorf("deploy to %s-%s failed: %s", args[0], args[1], resp)
		}
		fmt.Println(green(fmt.Sprintf("Root credentials deployed to %s-%s.", args[0], args[1])))
		return nil
	},
}

var (
	networkDHCP   bool
	networkStatic string
)

var setNetworkCmd = &cobra.Command{
	Use:   "set-network <module>",
	Short: "Apply addressing to one module without waiting",
	Long: `Apply DHCP or static addressing to one module with a single setniccfg.

No retry, polling or reachability check is done; use converge for that.

Examples:
  racctl -H cmc1 set-network server-1 --dhcp
  racctl -H cmc1 set-network server-2 --static 10.0.0.12/255.255.255.0/10.0.0.1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if networkDHCP == (networkStatic != "") {
			return fmt.Errorf("exactly one of --dhcp or --static is required")
		}
		a := provision.DHCPAddressing()
		if networkStatic != "" {
			var err error
			if a, err = parseStatic(networkStatic); err != nil {
				return err
			}
		}
		if err := a.Validate(); err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()
		p, err := connectProvisioner(ctx)
		if err != nil {
			return err
		}
		resp, err := p.SetNetworkInterface(ctx, args[0], a)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		if provision.ApplyFailed(resp) {
			return fmt.Errorf("setniccfg on %s failed: %s", args[0], resp)
		}
		fmt.Printf("%s %s\n", green("Applied"), a)
		return nil
	},
}

var (
	snmpCommunity string
	snmpPort      uint16
	snmpTimeout   time.Duration
	snmpRetries   int
)

var snmpCheckCmd = &cobra.Command{
	Use:   "snmp-check <address>",
	Short: "Verify a deployed SNMPv2 community",
	Long: `Read sysDescr.0 from <address> with SNMPv2c to confirm the read-only
community deployed by deploy-root works. No console connection is made.

Examples:
  racctl snmp-check 10.0.0.12 --community public
  racctl snmp-check 10.0.0.12 --community env:SNMP_COMMUNITY --timeout 2s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		p := provision.New(nil,
			provision.WithCredentials(provision.Credentials{Community: resolveSecret}),
		)
		descr, err := p.VerifyCommunity(ctx, provision.SNMPCheck{
			Address:   args[0],
			Community: snmpCommunity,
			Port:      snmpPort,
			Timeout:   snmpTimeout,
			Retries:   snmpRetries,
		})
		if err != nil {
			fmt.Println(red("FAILED"))
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"address": args[0], "sys_descr": descr})
		}
		fmt.Printf("%s %s\n", green("OK"), descr)
		return nil
	},
}

// parseStatic reads "ip/mask/gateway".
func parseStatic(s string) (provision.Addressing, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return provision.Addressing{}, fmt.Errorf("static addressing must be ip/mask/gateway, got %q", s)
	}
	return provision.StaticAddressing(parts[0], parts[1], parts[2]), nil
}

func init() {
	setUserCmd.Flags().StringVar(&userRole, "role", "", "Role: "+strings.Join(provision.Roles(), ", "))
	setUserCmd.Flags().StringVar(&userPassword, "user-password", "", "Account password (env:NAME or file:PATH; prompted when omitted)")
	setUserCmd.Flags().BoolVar(&userDisabled, "disabled", false, "Create the account disabled")
	setUserCmd.MarkFlagRequired("role")

	deployRootCmd.Flags().StringVar(&rootPassword, "root-password", "", "Root password (env:NAME or file:PATH; prompted when omitted)")
	deployRootCmd.Flags().StringVar(&rootCommunity, "community", "", "Read-only SNMPv2 community to deploy")

	setNetworkCmd.Flags().BoolVar(&networkDHCP, "dhcp", false, "Use DHCP")
	setNetworkCmd.Flags().StringVar(&networkStatic, "static", "", "Static addressing as ip/mask/gateway")

	snmpCheckCmd.Flags().StringVar(&snmpCommunity, "community", "", "Community to try (env:NAME or file:PATH)")
	snmpCheckCmd.Flags().Uint16Var(&snmpPort, "snmp-port", 161, "SNMP agent port")
	snmpCheckCmd.Flags().DurationVar(&snmpTimeout, "timeout", 5*time.Second, "Per-request timeout")
	snmpCheckCmd.Flags().IntVar(&snmpRetries, "retries", 1, "Retries per request")
	snmpCheckCmd.MarkFlagRequired("community")
}
