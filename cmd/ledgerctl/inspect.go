package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"visitledger/pkg/gateway"
)

func runInspect(ctx context.Context, args []string, stdout io.Writer) error {
	var server, gatewayBase, cardID string

	flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	flagSet.StringVar(&server, "server", envOr("VISITLEDGER_SERVER", defaultServer), "server base URL")
	flagSet.StringVar(&gatewayBase, "gateway", envOr("VISITLEDGER_IPFS_GATEWAY", gateway.DefaultGateway), "IPFS HTTP gateway")
	flagSet.StringVar(&cardID, "card", "1", "visit card id to inspect")
	if err := parseFlags(flagSet, args, stdout); err != nil {
		if errors.Is(err, errHelp) {
			return nil
		}
		return err
	}
	return inspect(ctx, NewClient(server, ""), cardID, gatewayBase, stdout)
}

// inspect prints what it can and keeps going past per-item failures.
func inspect(ctx context.Context, client *Client, cardID, gatewayBase string, stdout io.Writer) error {
	card, err := client.VisitCard(ctx, cardID)
	if err != nil {
		fmt.Fprintf(stdout, "visit card %s: %v\n", cardID, err)
	} else {
		fmt.Fprintf(stdout, "Visit card %s URI: %s\n", cardID, card.MetadataURI)
		printReport(stdout, "Gateway", gateway.Inspect(card.MetadataURI, gatewayBase))
	}

	state, err := client.Collection(ctx)
	if err != nil {
		return fmt.Errorf("read collection: %w", err)
	}
	for _, class := range state.Classes {
		printReport(stdout, fmt.Sprintf("Gateway %d", class.ID), gateway.Inspect(class.URI, gatewayBase))
	}
	return nil
}

func printReport(w io.Writer, label string, report gateway.Report) {
	fmt.Fprintf(w, "%s: %s\n", label, report.GatewayURL)
	if !report.Valid() {
		fmt.Fprintf(w, "  problem: %s\n", report.Problem)
	} else if report.CID != "" {
		fmt.Fprintf(w, "  cid v%d %s %s\n", report.CIDVersion, report.Codec, report.Hash)
	}
}
