package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/racctl/pkg/racadm"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive racadm session on one console connection",
	Long: `Open an interactive session that keeps one console connection.

Each line is a racadm verb with its parameters and flags; the leading
"racadm" is optional. The reply shape (empty, scalar, lines, fields) is
shown before the parsed output.

Examples:
  racctl -H cmc1 shell
  racctl[cmc1]> getniccfg -m server-1
  racctl[cmc1]> getconfig -g cfgUserAdmin -i 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		client, err := connect(ctx)
		if err != nil {
			return err
		}
		return NewShell(client, cfg.Host, os.Stdin, os.Stdout).Run(ctx)
	},
}

// Shell is a REPL over a connected console client.
type Shell struct {
	client   *racadm.Client
	host     string
	reader   *bufio.Reader
	out      io.Writer
	commands map[string]func(args []string)
	history  []string
}

// NewShell creates a shell reading lines from in.
func NewShell(client *racadm.Client, host string, in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		client: client,
		host:   host,
		reader: bufio.NewReader(in),
		out:    out,
	}
	s.commands = map[string]func(args []string){
		"help":    func([]string) { s.cmdHelp() },
		"?":       func([]string) { s.cmdHelp() },
		"history": func([]string) { s.cmdHistory() },
	}
	return s
}

// Run reads commands until quit, EOF or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "Connected to %s.\n", bold(s.host))
	fmt.Fprintln(s.out, "Type 'help' for available commands.")

	for {
		fmt.Fprintf(s.out, "racctl[%s]> ", s.host)
		line, err := s.reader.ReadString('\n')
		if err != nil { // EOF
			fmt.Fprintln(s.out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		switch args[0] {
		case "quit", "exit", "q":
			return nil
		}
		if fn, ok := s.commands[args[0]]; ok {
			fn(args[1:])
			continue
		}

		s.history = append(s.history, line)
		if err := s.send(ctx, args); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(s.out, red("Error: ")+err.Error())
		}
	}
}

func (s *Shell) send(ctx context.Context, args []string) error {
	if args[0] == racadm.Program {
		args = args[1:]
		if len(args) == 0 {
			return fmt.Errorf("missing verb")
		}
	}
	flags, params := splitFlags(args[1:])
	resp, err := s.client.Run(ctx, args[0], flags, params, false)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, yellow("["+resp.Kind().String()+"]"))
	if fields, ok := resp.Fields(); ok {
		for _, k := range fields.Keys() {
			v, _ := fields.Get(k)
			fmt.Fprintf(s.out, "  %s = %s\n", k, v)
		}
		return nil
	}
	for _, line := range resp.Text() {
		fmt.Fprintln(s.out, "  "+line)
	}
	return nil
}

func (s *Shell) cmdHelp() {
	fmt.Fprintln(s.out, `Commands:
  <verb> [params] [-flag value]  Send a racadm command (leading "racadm" optional)
  history                        Show commands sent this session
  help, ?                        Show this help
  quit, exit, q                  Close the session`)
}

func (s *Shell) cmdHistory() {
	for i, line := range s.history {
		fmt.Fprintf(s.out, "%3d  %s\n", i+1, line)
	}
}
