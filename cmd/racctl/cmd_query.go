package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/racctl/pkg/cli"
	"github.com/newtron-network/racctl/pkg/racadm"
)

var execCmd = &cobra.Command{
	Use:   "exec <verb> [params...] [-flag value...]",
	Short: "Run a racadm verb and print the parsed reply",
	Long: `Run a racadm verb and print the parsed reply.

Tokens after the verb are passed through: "-name value" pairs as flags,
anything else as parameters. Global flags go before the verb. Field replies
print as a KEY/VALUE table, everything else line by line; --json prints
the parsed shape (null, string, array or object).

Examples:
  racctl -H cmc1 exec getsysinfo
  racctl -H cmc1 exec getniccfg -m server-1
  racctl -H cmc1 --json exec getmodinfo`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		client, err := connect(ctx)
		if err != nil {
			return err
		}
		flags, params := splitFlags(args[1:])
		resp, err := client.Run(ctx, args[0], flags, params, verbose)
		if err != nil {
			return err
		}
		return printResponse(resp)
	},
}

var (
	getconfigGroup  string
	getconfigObject string
	getconfigIndex  string
)

var getconfigCmd = &cobra.Command{
	Use:   "getconfig",
	Short: "Query configuration groups and objects",
	Long: `Query configuration groups and objects with racadm getconfig.

Without -g the console lists its groups.

Examples:
  racctl -H cmc1 getconfig
  racctl -H cmc1 getconfig -g cfgUserAdmin -i 2
  racctl -H cmc1 getconfig -g cfgUserAdmin -o cfgUserAdminUserName -i 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if getconfigObject != "" && getconfigGroup == "" {
			return fmt.Errorf("--object requires --group")
		}
		ctx, cancel := commandContext()
		defer cancel()

		client, err := connect(ctx)
		if err != nil {
			return err
		}
		var flags racadm.Flags
		if getconfigIndex != "" {
			flags = flags.With(racadm.F("i", getconfigIndex))
		}
		resp, err := client.RunGetConfig(ctx, getconfigGroup, getconfigObject, flags)
		if err != nil {
			return err
		}
		return printResponse(resp)
	},
}

var nicCmd = &cobra.Command{
	Use:   "nic <module>",
	Short: "Show a module's network configuration",
	Long: `Show a module's network configuration as reported by getniccfg.

Examples:
  racctl -H cmc1 nic server-1
  racctl -H cmc1 --json nic switch-2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		p, err := connectProvisioner(ctx)
		if err != nil {
			return err
		}
		nic, err := p.GetNetworkConfig(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(nic.Raw)
		}

		dhcp := "disabled"
		if nic.DHCPEnabled {
			dhcp = "enabled"
		}
		t := cli.NewTable("MODULE", "IP ADDRESS", "SUBNET MASK", "GATEWAY", "DHCP")
		t.Row(args[0], cli.OrNotSet(nic.IPAddress), cli.OrNotSet(nic.SubnetMask), cli.OrNotSet(nic.Gateway), dhcp)
		t.Flush()

		if nic.HasDHCPLease() {
			fmt.Println("\n" + green("Module has a DHCP lease."))
		}
		return nil
	},
}

// splitFlags separates "-name value" pairs from positional parameters.
// A flag followed by another flag or nothing is a switch.
func splitFlags(tokens []string) (racadm.Flags, []string) {
	var flags racadm.Flags
	var params []string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "-") || len(tok) == 1 {
			params = append(params, tok)
			continue
		}
		name := strings.TrimLeft(tok, "-")
		value := ""
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
			value = tokens[i+1]
			i++
		}
		flags = flags.With(racadm.F(name, value))
	}
	return flags, params
}

func init() {
	getconfigCmd.Flags().StringVarP(&getconfigGroup, "group", "g", "", "Configuration group")
	getconfigCmd.Flags().StringVarP(&getconfigObject, "object", "o", "", "Object within the group")
	getconfigCmd.Flags().StringVarP(&getconfigIndex, "index", "i", "", "Index for indexed groups")

	// Keep racadm flags after the verb out of cobra's parser.
	execCmd.Flags().SetInterspersed(false)
}
