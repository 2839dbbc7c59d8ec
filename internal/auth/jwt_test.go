package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	id := uuid.New()

	token, err := svc.Generate(id, "ops@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	got, ok := claims.Actor()
	if !ok || got != id {
		t.Fatalf("expected actor %s, got %s", id, got)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _ := NewJWTService("one", time.Hour).Generate(uuid.New(), "")
	if _, err := NewJWTService("two", time.Hour).Validate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAcceptsSubjectOnly(t *testing.T) {
	id := uuid.New()
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := NewJWTService("s", 0).Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if actor, _ := got.Actor(); actor != id {
		t.Fatalf("expected %s, got %s", id, actor)
	}
}

func TestValidateRejectsMissingActor(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "not-a-uuid"}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if _, err := NewJWTService("s", 0).Validate(token); err == nil {
		t.Fatal("expected error for token without a user id")
	}
}

func TestActorContext(t *testing.T) {
	if ActorFromContext(context.Background()) != nil {
		t.Fatal("expected no actor")
	}
	id := uuid.New()
	got := ActorFromContext(WithActor(context.Background(), id))
	if got == nil || *got != id {
		t.Fatalf("expected %s, got %v", id, got)
	}
}
