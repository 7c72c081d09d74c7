package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	collectionhandler "visitledger/internal/collection/handler"
	"visitledger/internal/collection/models"
	visitcardhandler "visitledger/internal/visitcard/handler"
	dErrors "visitledger/pkg/domain-errors"
)

// starterClasses are distributed to the student after the card is issued.
var starterClasses = []models.ClassID{0, 1}

func runDemo(ctx context.Context, args []string, stdout io.Writer) error {
	var server, token string
	card := visitcardhandler.IssueRequest{}

	flagSet := pflag.NewFlagSet("demo", pflag.ContinueOnError)
	flagSet.StringVar(&server, "server", envOr("VISITLEDGER_SERVER", defaultServer), "server base URL")
	flagSet.StringVar(&token, "token", envOr("VISITLEDGER_TOKEN", ""), "owner bearer token (see ledgerctl token)")
	flagSet.StringVar(&card.Recipient, "student", envOr("STUDENT_ADDRESS", ""), "student address")
	flagSet.StringVar(&card.MetadataURI, "metadata-uri", envOr("SB_TOKEN_URI", "ipfs://QmVisitCardMetadata.json"), "visit card metadata URI")
	flagSet.StringVar(&card.Name, "name", envOr("STUDENT_NAME", "Alice"), "student name")
	flagSet.StringVar(&card.ExternalID, "student-id", envOr("STUDENT_ID", "S123"), "student identifier")
	flagSet.StringVar(&card.Course, "course", envOr("STUDENT_COURSE", "Blockchain"), "course")
	flagSet.StringVar(&card.Period, "year", envOr("STUDENT_YEAR", "2025"), "academic period")
	if err := parseFlags(flagSet, args, stdout); err != nil {
		if errors.Is(err, errHelp) {
			return nil
		}
		return err
	}
	if card.Recipient == "" {
		return errors.New("--student is required")
	}
	if token == "" {
		return errors.New("--token is required")
	}
	return demo(ctx, NewClient(server, token), card, stdout)
}

func demo(ctx context.Context, client *Client, card visitcardhandler.IssueRequest, stdout io.Writer) error {
	fmt.Fprintln(stdout, "Student:", card.Recipient)

	cardID, err := client.IssueVisitCard(ctx, card)
	if err != nil {
		return fmt.Errorf("issue visit card: %w", err)
	}
	fmt.Fprintln(stdout, "Visit card issued:", cardID)

	state, err := client.Collection(ctx)
	if err != nil {
		return fmt.Errorf("read collection: %w", err)
	}
	if state.Initialized {
		fmt.Fprintln(stdout, "Initial set already minted")
	} else {
		err := client.Initialize(ctx)
		switch {
		case err == nil:
			fmt.Fprintln(stdout, "Initial set minted")
		case dErrors.HasCode(err, dErrors.CodeAlreadyInitialized):
			fmt.Fprintln(stdout, "Initial set already minted")
		default:
			return fmt.Errorf("initialize collection: %w", err)
		}
	}

	amounts := make([]uint64, len(starterClasses))
	for i := range amounts {
		amounts[i] = 1
	}
	if err := client.Distribute(ctx, collectionhandler.BatchRequest{
		To:       card.Recipient,
		ClassIDs: starterClasses,
		Amounts:  amounts,
	}); err != nil {
		return fmt.Errorf("distribute: %w", err)
	}
	fmt.Fprintf(stdout, "Distributed classes %v\n", starterClasses)
	return nil
}
