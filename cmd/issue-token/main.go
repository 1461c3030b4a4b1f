// Command issue-token mints a bearer token for the trip application.
//
// Usage:
//
//	JWT_SECRET=... issue-token -trip trip-123 -actor trip-app -ttl 720h
//
// Pass -trip '*' for a token valid on every trip.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mmynk/tripsplit/internal/auth"
	"github.com/mmynk/tripsplit/internal/config"
)

func main() {
	cfg := config.Load()

	actor := flag.String("actor", "trip-app", "who the token is issued to")
	trip := flag.String("trip", "", "trip the token is scoped to, or * for all trips")
	ttl := flag.Duration("ttl", cfg.TokenTTL, "token lifetime")
	flag.Parse()

	if *trip == "" {
		fmt.Fprintln(os.Stderr, "issue-token: -trip is required")
		flag.Usage()
		os.Exit(2)
	}
	if len(cfg.JWTSecret) < 32 {
		fmt.Fprintln(os.Stderr, "issue-token: JWT_SECRET must be set and at least 32 characters")
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, *ttl).Generate(*actor, *trip)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue-token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
