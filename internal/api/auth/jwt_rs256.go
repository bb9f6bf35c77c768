package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identify the engineer behind a write. Engineer falls back to
// the registered subject.
type Claims struct {
	Engineer string `json:"engineer,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) Actor() string {
	if e := strings.TrimSpace(c.Engineer); e != "" {
		return e
	}
	return strings.TrimSpace(c.Subject)
}

// LoadRSAPublicKeyFromEnv reads a PEM public key from an env var.
// It supports either a normal multi-line PEM, or a single-line PEM with \n escapes.
func LoadRSAPublicKeyFromEnv(envKey string) (*rsa.PublicKey, error) {
	raw, err := pemFromEnv(envKey)
	if err != nil {
		return nil, err
	}

	pub, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse public key pem failed: %w", err)
	}

	return pub, nil
}

// LoadRSAPrivateKeyFromEnv is the signing side of LoadRSAPublicKeyFromEnv.
// PKCS#1 and PKCS#8 keys are accepted.
func LoadRSAPrivateKeyFromEnv(envKey string) (*rsa.PrivateKey, error) {
	raw, err := pemFromEnv(envKey)
	if err != nil {
		return nil, err
	}

	priv, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key pem failed: %w", err)
	}

	return priv, nil
}

func pemFromEnv(envKey string) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return nil, fmt.Errorf("%s is not set", envKey)
	}
	return []byte(strings.ReplaceAll(raw, `\n`, "\n")), nil
}

func ParseAndValidateRS256(tokenString string, pub *rsa.PublicKey) (*Claims, error) {
	if pub == nil {
		return nil, errors.New("public key is nil")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
	)

	tok, err := parser.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return pub, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Actor() == "" {
		return nil, errors.New("engineer missing")
	}

	return claims, nil
}

// SignRS256 mints a token for engineer; used by mint-token and tests.
func SignRS256(priv *rsa.PrivateKey, engineer string, issuer string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()

	c := Claims{
		Engineer: engineer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   engineer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	return tok.SignedString(priv)
}
