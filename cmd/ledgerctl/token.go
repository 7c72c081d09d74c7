package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	jwttoken "visitledger/internal/jwt_token"
	"visitledger/internal/platform/config"
	id "visitledger/pkg/domain"
)

func runToken(_ context.Context, args []string, stdout io.Writer) error {
	var signingKey, issuer, audience, subject string
	var ttl time.Duration

	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.StringVar(&signingKey, "signing-key", envOr("VISITLEDGER_JWT_SIGNING_KEY", config.DefaultJWTSigningKey), "HMAC key shared with the server")
	flagSet.StringVar(&issuer, "issuer", envOr("VISITLEDGER_JWT_ISSUER", "visitledger"), "token issuer")
	flagSet.StringVar(&audience, "audience", envOr("VISITLEDGER_JWT_AUDIENCE", "visitledger-api"), "token audience")
	flagSet.StringVar(&subject, "subject", envOr("VISITLEDGER_OWNER", ""), "caller address the token speaks for")
	flagSet.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := parseFlags(flagSet, args, stdout); err != nil {
		if errors.Is(err, errHelp) {
			return nil
		}
		return err
	}

	caller, err := id.ParseAddress(subject)
	if err != nil {
		return fmt.Errorf("--subject: %w", err)
	}
	if caller.IsZero() {
		return errors.New("--subject must not be the zero address")
	}
	token, err := jwttoken.NewJWTService(signingKey, issuer, audience).GenerateAccessToken(caller, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
