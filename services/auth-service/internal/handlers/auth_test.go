package handlers

import (
	"testing"
	"time"

	"github.com/glowbook/glowbook/libs/auth"
	"github.com/glowbook/glowbook/services/auth-service/internal/storage"
)

func TestPasswordHashing(t *testing.T) {
	password := "pass1234"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestIssueJWTCarriesStylistID(t *testing.T) {
	signer := NewHS256Signer("test-secret")

	token, err := issueJWT(storage.User{
		ID:        "u-1",
		StylistID: "u-1",
		Role:      "stylist",
	}, signer)
	if err != nil {
		t.Fatalf("issueJWT failed: %v", err)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Sub != "u-1" || claims.StylistID != "u-1" || claims.Role != "stylist" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Exp <= time.Now().Unix() {
		t.Fatal("expected token to expire in the future")
	}
}

func TestIssueJWTClientHasNoStylistID(t *testing.T) {
	signer := NewHS256Signer("test-secret")

	token, err := issueJWT(storage.User{ID: "u-2", Role: "client"}, signer)
	if err != nil {
		t.Fatalf("issueJWT failed: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.StylistID != "" {
		t.Fatalf("client token should not carry a stylist id, got %q", claims.StylistID)
	}
}

func TestHS256SignerRejectsTamperedToken(t *testing.T) {
	signer := NewHS256Signer("test-secret")
	token, err := signer.Sign(auth.Claims{Sub: "u-3", Role: "client", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := NewHS256Signer("other-secret").Verify(token); err == nil {
		t.Fatal("expected verification under a different secret to fail")
	}
}
