// Command devtoken mints bearer tokens for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/pkg/auth"
	"github.com/zatekoja/teleconsult/pkg/config"
)

func main() {
	userID := flag.Int64("user", 0, "account ID to put in the token subject")
	email := flag.String("email", "", "email claim")
	roles := flag.String("roles", "PATIENT", "comma separated roles (PATIENT, DOCTOR, ADMIN)")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_TTL)")
	flag.Parse()

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "-user is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var claimRoles []string
	for _, raw := range strings.Split(*roles, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		role, err := entities.ParseRole(raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		claimRoles = append(claimRoles, string(role))
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, lifetime)
	token, expiresAt, err := tokens.Generate(auth.Claims{UserID: *userID, Email: *email, Roles: claimRoles})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
}
