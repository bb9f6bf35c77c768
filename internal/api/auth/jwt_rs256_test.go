package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParseAndValidateRS256_RoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	tok, err := SignRS256(priv, "jo", "celltrack", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseAndValidateRS256(tok, &priv.PublicKey)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Actor() != "jo" {
		t.Fatalf("expected actor jo, got %q", claims.Actor())
	}
}

func TestParseAndValidateRS256_RejectsMissingEngineer(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseAndValidateRS256(tok, &priv.PublicKey); err == nil {
		t.Fatalf("expected error for token without engineer")
	}
}

func TestParseAndValidateRS256_RejectsOtherKey(t *testing.T) {
	a, _ := rsa.GenerateKey(rand.Reader, 2048)
	b, _ := rsa.GenerateKey(rand.Reader, 2048)

	tok, err := SignRS256(a, "jo", "celltrack", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndValidateRS256(tok, &b.PublicKey); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestLoadRSAPublicKeyFromEnv_SingleLinePEM(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	pemText := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	escaped := strings.ReplaceAll(pemText, "\n", `\n`)
	t.Setenv("TEST_JWT_PUB", escaped)

	pub, err := LoadRSAPublicKeyFromEnv("TEST_JWT_PUB")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if pub.N.Cmp(priv.PublicKey.N) != 0 {
		t.Fatalf("loaded key does not match")
	}
}

func TestLoadRSAPrivateKeyFromEnv_PKCS1AndPKCS8(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}

	blocks := map[string]*pem.Block{
		"pkcs1": {Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)},
		"pkcs8": {Type: "PRIVATE KEY", Bytes: pkcs8},
	}
	for name, block := range blocks {
		t.Setenv("TEST_JWT_PRIV", string(pem.EncodeToMemory(block)))

		got, err := LoadRSAPrivateKeyFromEnv("TEST_JWT_PRIV")
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if got.N.Cmp(priv.N) != 0 {
			t.Fatalf("%s: loaded key does not match", name)
		}
	}

	t.Setenv("TEST_JWT_PRIV", "")
	if _, err := LoadRSAPrivateKeyFromEnv("TEST_JWT_PRIV"); err == nil {
		t.Fatalf("expected error for unset key")
	}
}
