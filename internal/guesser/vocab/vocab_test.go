package vocab

import (
	"errors"
	"testing"

	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
)

func observeAll(t *testing.T, b *Builder, tokens ...string) {
	t.Helper()
	for _, tok := range tokens {
		if err := b.Observe(tok); err != nil {
			t.Fatalf("Observe(%q): %v", tok, err)
		}
	}
}

func TestFinalizeOrdersByCountThenFirstSeen(t *testing.T) {
	b := NewBuilder(50)
	// alpha x3, beta x2, gamma x2, delta x1. beta seen before gamma.
	observeAll(t, b, "alpha", "beta", "gamma", "alpha", "beta", "gamma", "alpha", "delta")

	v, err := b.Finalize(1)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	want := []string{"alpha", "beta", "gamma", "delta", UnknownToken}
	if v.Size() != len(want) {
		t.Fatalf("Size() = %d, want %d", v.Size(), len(want))
	}
	for id, token := range want {
		if got := v.Token(id); got != token {
			t.Errorf("Token(%d) = %q, want %q", id, got, token)
		}
		if got := v.Lookup(token); got != id {
			t.Errorf("Lookup(%q) = %d, want %d", token, got, id)
		}
	}
	if v.UnknownID() != v.Size()-1 {
		t.Errorf("UnknownID() = %d, want %d", v.UnknownID(), v.Size()-1)
	}
}

func TestFinalizeAppliesMinCount(t *testing.T) {
	b := NewBuilder(50)
	observeAll(t, b, "common", "common", "rare")

	v, err := b.Finalize(2)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if v.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 (common + unknown)", v.Size())
	}
	if got := v.Lookup("rare"); got != v.UnknownID() {
		t.Errorf("Lookup(rare) = %d, want unknown id %d", got, v.UnknownID())
	}
	// Pruned mass accrues to <UNK>.
	if got := v.Count(v.UnknownID()); got != 1 {
		t.Errorf("Count(unknown) = %d, want 1", got)
	}
}

func TestFinalizeCapacityError(t *testing.T) {
	b := NewBuilder(3)
	observeAll(t, b, "a", "b", "c")

	_, err := b.Finalize(1)
	if !errors.Is(err, apperrors.ErrCapacity) {
		t.Fatalf("Finalize err = %v, want ErrCapacity", err)
	}
}

func TestFinalizeTinyMaxSize(t *testing.T) {
	b := NewBuilder(1)
	if _, err := b.Finalize(1); !errors.Is(err, apperrors.ErrCapacity) {
		t.Fatalf("Finalize err = %v, want ErrCapacity", err)
	}
}

func TestObserveAfterFinalize(t *testing.T) {
	b := NewBuilder(10)
	observeAll(t, b, "a")
	if _, err := b.Finalize(1); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := b.Observe("b"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Observe after finalize err = %v, want ErrInvalidState", err)
	}
	if _, err := b.Finalize(1); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("second Finalize err = %v, want ErrInvalidState", err)
	}
}

func TestEmptyBuilderFinalizesToUnknownOnly(t *testing.T) {
	b := NewBuilder(10)
	v, err := b.Finalize(1)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if v.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", v.Size())
	}
	if v.Token(0) != UnknownToken {
		t.Errorf("Token(0) = %q, want %q", v.Token(0), UnknownToken)
	}
}

func TestLookupIsTotal(t *testing.T) {
	b := NewBuilder(10)
	observeAll(t, b, "known", "known")
	v, err := b.Finalize(1)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	for _, token := range []string{"known", "never-seen", "", UnknownToken} {
		id := v.Lookup(token)
		if id < 0 || id >= v.Size() {
			t.Errorf("Lookup(%q) = %d, out of range [0,%d)", token, id, v.Size())
		}
	}
}

func TestTokenOutOfRangeFallsBackToUnknown(t *testing.T) {
	b := NewBuilder(10)
	observeAll(t, b, "a")
	v, err := b.Finalize(1)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got := v.Token(-1); got != UnknownToken {
		t.Errorf("Token(-1) = %q, want %q", got, UnknownToken)
	}
	if got := v.Token(v.Size()); got != UnknownToken {
		t.Errorf("Token(Size()) = %q, want %q", got, UnknownToken)
	}
}

func TestFinalizeIsDeterministic(t *testing.T) {
	build := func() *Vocabulary {
		b := NewBuilder(100)
		// All counts equal: order must come from first observation.
		observeAll(t, b, "w1", "w2", "w3", "w4", "w5", "w6", "w7", "w8")
		v, err := b.Finalize(1)
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		return v
	}
	a, b := build(), build()
	for id := 0; id < a.Size(); id++ {
		if a.Token(id) != b.Token(id) {
			t.Fatalf("id %d: %q vs %q across identical builds", id, a.Token(id), b.Token(id))
		}
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	b := NewBuilder(10)
	observeAll(t, b, "x", "x", "y")
	v, err := b.Finalize(1)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	restored, err := Restore(v.Tokens(), v.Counts())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Size() != v.Size() || restored.UnknownID() != v.UnknownID() {
		t.Fatalf("restored shape (%d,%d) != original (%d,%d)",
			restored.Size(), restored.UnknownID(), v.Size(), v.UnknownID())
	}
	for id := 0; id < v.Size(); id++ {
		if restored.Token(id) != v.Token(id) {
			t.Errorf("Token(%d): restored %q != original %q", id, restored.Token(id), v.Token(id))
		}
		if restored.Count(id) != v.Count(id) {
			t.Errorf("Count(%d): restored %d != original %d", id, restored.Count(id), v.Count(id))
		}
	}
}

func TestRestoreRejectsBadInput(t *testing.T) {
	if _, err := Restore(nil, nil); err == nil {
		t.Error("Restore(nil) should fail")
	}
	if _, err := Restore([]string{"a", "b"}, nil); err == nil {
		t.Error("Restore without trailing unknown token should fail")
	}
	if _, err := Restore([]string{"a", "a", UnknownToken}, nil); err == nil {
		t.Error("Restore with duplicate token should fail")
	}
}
