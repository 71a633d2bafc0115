package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/justinabrahms/piecewalk/internal/auth"
	"github.com/justinabrahms/piecewalk/internal/config"
)

func main() {
	var (
		secret    string
		subject   string
		ttl       time.Duration
		genSecret bool
	)
	flag.StringVar(&secret, "secret", "", "Signing secret (default auth.secret from config)")
	flag.StringVar(&subject, "sub", "operator", "Token subject")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (default auth.token_ttl from config)")
	flag.BoolVar(&genSecret, "gen-secret", false, "Print a fresh random signing secret and exit")
	flag.Parse()

	if genSecret {
		s, err := auth.GenerateSecret()
		if err != nil {
			log.Fatal("Failed to generate secret:", err)
		}

		fmt.Println("=== SIGNING SECRET (Keep this secret!) ===")
		fmt.Println("Set it as auth.secret in config.yaml or as PIECEWALK_AUTH_SECRET:")
		fmt.Println()
		fmt.Println(s)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if secret == "" {
		secret = cfg.Auth.Secret
	}
	if ttl == 0 {
		ttl = cfg.Auth.TokenTTL
	}

	issuer, err := auth.NewIssuer(secret, cfg.Auth.Issuer, ttl)
	if err != nil {
		log.Fatal("Failed to create issuer:", err)
	}

	token, err := issuer.Issue(subject)
	if err != nil {
		log.Fatal("Failed to issue token:", err)
	}

	fmt.Println(token)
}
