// ledgerctl drives a visitledger server from the command line.
//
//	ledgerctl token  --signing-key KEY --subject 0x...
//	ledgerctl demo   --token TOKEN --student 0x...
//	ledgerctl inspect
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
)

const defaultServer = "http://localhost:8080"

type command struct {
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"token":   {summary: "mint a bearer token for an address", run: runToken},
	"demo":    {summary: "issue a visit card and distribute starter characters", run: runDemo},
	"inspect": {summary: "print metadata URIs and gateway links", run: runInspect},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(ctx, args[1:], stdout)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: ledgerctl <command> [flags]")
	fmt.Fprintln(w)
	for _, name := range []string{"token", "demo", "inspect"} {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}

// parseFlags parses args into flagSet. A help request prints the defaults and
// reports errHelp so the caller can stop without failing.
func parseFlags(flagSet *pflag.FlagSet, args []string, stdout io.Writer) error {
	flagSet.SetOutput(stdout)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected arguments: %v", extra)
	}
	return nil
}

var errHelp = errors.New("help requested")

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
