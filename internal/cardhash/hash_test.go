package cardhash

import (
	"crypto/sha256"
	"fmt"
	"testing"
)

func TestNormalize(t *testing.T) {
	normalized := Normalize("  What is   HTMX? \r\n", "A library\r\nfor AJAX.")
	expected := "what is htmx?\na library for ajax."

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestFingerprint(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		expected := fmt.Sprintf("%x", sha256.Sum256([]byte("q\na")))
		if got := Fingerprint("Q", "A"); got != expected {
			t.Errorf("Expected hash '%s', but got '%s'", expected, got)
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		if Fingerprint("  what is go? ", "A programming language.") != Fingerprint("What Is Go?", "A  programming language.") {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("field boundary matters", func(t *testing.T) {
		if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
			t.Error("Expected different hashes when text moves between front and back")
		}
	})
}

func TestSet(t *testing.T) {
	s := Set{}
	if !s.Add("Q", "A") {
		t.Error("Expected first add to report a new card")
	}
	if s.Add(" q ", "a") {
		t.Error("Expected normalized duplicate to be rejected")
	}
	if !s.Add("Q", "B") {
		t.Error("Expected a different answer to be a new card")
	}
}
