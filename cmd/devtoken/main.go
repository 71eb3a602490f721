// Command devtoken mints an access token for local testing. Production tokens
// come from the identity provider that shares ACCESS_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/auth"
	"github.com/baibhavbaidya/researchmind-backend/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id to put in the token")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	verifier, err := auth.NewTokenVerifier(cfg.AccessSecret, nil)
	if err != nil {
		log.Fatalf("Failed to initialize token verifier: %v", err)
	}
	token, expires, err := verifier.Issue(*userID, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
	fmt.Printf("expires %s\n", expires.Format(time.RFC3339))
}
