package jwtutil

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParseRoundTrip(t *testing.T) {
	raw, err := GenerateToken("secret", TokenTypeAccess, time.Minute, 42, "a@x.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseToken("secret", TokenTypeAccess, raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "a@x.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	raw, err := GenerateToken("secret", TokenTypeRefresh, time.Minute, 1, "a@x.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseToken("secret", TokenTypeAccess, raw); !errors.Is(err, ErrWrongTokenUse) {
		t.Fatalf("expected ErrWrongTokenUse, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	raw, err := GenerateToken("secret", TokenTypeAccess, time.Minute, 1, "a@x.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseToken("other", TokenTypeAccess, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	raw, err := GenerateToken("secret", TokenTypeAccess, -time.Minute, 1, "a@x.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseToken("secret", TokenTypeAccess, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
