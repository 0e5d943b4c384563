package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/racctl/pkg/cli"
	"github.com/newtron-network/racctl/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.racctl/settings.yaml.

Settings provide defaults for connection flags and convergence timings.
Precedence, highest first: flags, RACCTL_* environment variables, the
settings file, built-in defaults.

Examples:
  racctl settings show
  racctl settings set host cmc1.example.net
  racctl settings set poll_interval 20s
  racctl settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored and effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := settings.LoadFile(settingsPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		effective, err := settings.Load(settingsPath, cmd.Flags())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settingsPath)

		t := cli.NewTable("SETTING", "STORED", "EFFECTIVE")
		for _, k := range settings.Keys {
			sv, _ := stored.Get(k.Name)
			ev, _ := effective.Get(k.Name)
			t.Row(k.Name, cli.OrNotSet(sv), cli.OrNotSet(ev))
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long:  "Set a persistent setting value.\n\nAvailable settings:\n" + settingsHelp(),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFile(settingsPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.SaveTo(settingsPath); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a stored setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFile(settingsPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		value, err := s.Get(args[0])
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		s.Clear()
		if err := s.SaveTo(settingsPath); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settingsPath)
	},
}

func settingsHelp() string {
	var out string
	for _, k := range settings.Keys {
		out += fmt.Sprintf("  %-18s %s\n", k.Name, k.Help)
	}
	return out
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
