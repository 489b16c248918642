// sessionctl inspects a bearer token the way the storefront's guard does:
// decode without verifying, read the expiry, fail closed on anything
// malformed. Exit status 0 means the token would still be accepted.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bundlefront/sessionguard/internal/config"
	"github.com/bundlefront/sessionguard/token"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <token>\n\nInspects a bearer token's claims and expiry.\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	rawToken := flag.Arg(0)
	if rawToken == "" {
		rawToken = os.Getenv("SESSION_TOKEN")
	}
	if rawToken == "" {
		flag.Usage()
		os.Exit(2)
	}

	displayAppname(config.New().GetAppName())

	if err := inspect(rawToken); err != nil {
		log.Err(err).Msg("token rejected")
		os.Exit(1)
	}
}

func inspect(rawToken string) error {
	claims, err := token.DecodeClaims(rawToken)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(claims))
	for name := range claims {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("claims:")
	for _, name := range names {
		fmt.Printf("  %-10s %v\n", name, claims[name])
	}

	expiresAt, ok := claims.ExpiresAt()
	if !ok {
		return fmt.Errorf("no readable expiry claim, treating as expired")
	}

	fmt.Printf("\nexpires at %s\n", expiresAt.Format(time.RFC3339))

	if token.IsExpired(rawToken) {
		return fmt.Errorf("expired %s ago", time.Since(expiresAt).Round(time.Second))
	}

	fmt.Printf("valid for another %s\n", time.Until(expiresAt).Round(time.Second))
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
