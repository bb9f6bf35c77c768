package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ETAnderson/celltrack/internal/api/auth"
)

func main() {
	var (
		engineer = flag.String("engineer", "", "engineer the token speaks for (required)")
		ttl      = flag.Duration("ttl", 8*time.Hour, "token TTL (e.g. 30m, 8h)")
		issuer   = flag.String("iss", "celltrack", "issuer (iss)")
		envKey   = flag.String("env", "JWT_PRIVATE_KEY_PEM", "env var containing RSA private key PEM")
	)
	flag.Parse()

	if strings.TrimSpace(*engineer) == "" {
		fmt.Fprintln(os.Stderr, "-engineer is required")
		os.Exit(2)
	}

	priv, err := auth.LoadRSAPrivateKeyFromEnv(*envKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load private key failed: %v\n", err)
		os.Exit(1)
	}

	s, err := auth.SignRS256(priv, strings.TrimSpace(*engineer), *issuer, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(s)
}
