package nonce

import (
	"context"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/88448844/self-sovereign-identity-SSI/kvstore"
)

func newTestService() (*Service, clock.FakeClock) {
	clk := clock.NewFake()
	clk.Set(time.Unix(1000, 0))
	return New(kvstore.NewMemoryStore(), clk), clk
}

func TestValidNonce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	ch, err := s.Issue(ctx, "verifier-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	ok, reason, err := s.Validate(ctx, ch.Nonce, "verifier-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || reason != "ok" {
		t.Fatalf("expected fresh nonce to validate, got ok=%v reason=%q", ok, reason)
	}
}

func TestAlreadyUsed(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	ch, _ := s.Issue(ctx, "verifier-1")
	s.Validate(ctx, ch.Nonce, "verifier-1")

	ok, reason, err := s.Validate(ctx, ch.Nonce, "verifier-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected replayed nonce to be rejected")
	}
	if reason != "nonce not found" {
		t.Fatalf("expected %q, got %q", "nonce not found", reason)
	}
}

func TestAudienceMismatchDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	ch, _ := s.Issue(ctx, "verifier-1")

	ok, reason, err := s.Validate(ctx, ch.Nonce, "verifier-2")
	if err != nil {
		t.Fatal(err)
	}
	if ok || reason != "aud mismatch" {
		t.Fatalf("expected aud mismatch, got ok=%v reason=%q", ok, reason)
	}

	// The nonce must still be usable by its real audience.
	ok, reason, err = s.Validate(ctx, ch.Nonce, "verifier-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || reason != "ok" {
		t.Fatalf("expected nonce to survive a mismatched validate, got ok=%v reason=%q", ok, reason)
	}
}

func TestRejectUnknownNonce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	ok, reason, err := s.Validate(ctx, "made-up-nonce", "verifier-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok || reason != "nonce not found" {
		t.Fatalf("expected not found, got ok=%v reason=%q", ok, reason)
	}
}

func TestExpiredNonceIsRejectedAndDeleted(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestService()
	ch, _ := s.Issue(ctx, "verifier-1")

	clk.Add(301 * time.Second)

	ok, reason, err := s.Validate(ctx, ch.Nonce, "verifier-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok || reason != "expired" {
		t.Fatalf("expected expired, got ok=%v reason=%q", ok, reason)
	}

	// Deleted lazily on the expiry-detecting validate (invariant 4).
	ok, reason, err = s.Validate(ctx, ch.Nonce, "verifier-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok || reason != "nonce not found" {
		t.Fatalf("expected the expired nonce to be gone, got ok=%v reason=%q", ok, reason)
	}
}
