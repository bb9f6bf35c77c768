package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var keygenFlags struct {
	outDir string
	bits   int
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Write an RSA key pair for signing and checking engineer tokens",
	Long: "Writes jwt_private.pem (PKCS#1) and jwt_public.pem (SPKI). Put the\n" +
		"public key in JWT_PUBLIC_KEY_PEM for the API and the private key in\n" +
		"JWT_PRIVATE_KEY_PEM for mint-token.",
	RunE: runKeygen,
}

func init() {
	f := keygenCmd.Flags()
	f.StringVar(&keygenFlags.outDir, "out", "./secrets", "output directory")
	f.IntVar(&keygenFlags.bits, "bits", 2048, "RSA key size")
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	if keygenFlags.bits < 2048 {
		return fmt.Errorf("--bits must be at least 2048, got %d", keygenFlags.bits)
	}

	privPEM, pubPEM, err := generateKeyPair(keygenFlags.bits)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(keygenFlags.outDir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", keygenFlags.outDir, err)
	}

	privPath := filepath.Join(keygenFlags.outDir, "jwt_private.pem")
	pubPath := filepath.Join(keygenFlags.outDir, "jwt_public.pem")

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nWrote %s\n", privPath, pubPath)
	return nil
}

func generateKeyPair(bits int) (privPEM []byte, pubPEM []byte, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("keygen: %w", err)
	}

	privPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	return privPEM, pubPEM, nil
}
