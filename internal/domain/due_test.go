package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDueCards(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	nowMs := Millis(now)
	deck := Deck{
		ID: "d1",
		Cards: []Flashcard{
			{ID: "past", NextReviewDate: nowMs - 1000, Status: StatusReview},
			{ID: "future", NextReviewDate: nowMs + 1000, Status: StatusReview},
			{ID: "just", NextReviewDate: nowMs - 1, Status: StatusReview},
		},
	}

	t.Run("elapsed review dates only", func(t *testing.T) {
		due := DueCards(deck, now, DueStrict)
		if len(due) != 2 {
			t.Fatalf("Expected 2 due cards, got %d", len(due))
		}
		if due[0].ID != "past" || due[1].ID != "just" {
			t.Errorf("Expected [past just] in deck order, got [%s %s]", due[0].ID, due[1].ID)
		}
	})

	t.Run("exact boundary is due", func(t *testing.T) {
		d := Deck{Cards: []Flashcard{{ID: "now", NextReviewDate: nowMs}}}
		if got := len(DueCards(d, now, DueStrict)); got != 1 {
			t.Errorf("Expected card due exactly now to be included, got %d cards", got)
		}
	})

	t.Run("learning cards", func(t *testing.T) {
		d := deck.Clone()
		d.Cards[1].Status = StatusLearning
		if got := len(DueCards(d, now, DueInclusive)); got != 3 {
			t.Errorf("Expected inclusive policy to add the learning card, got %d cards", got)
		}
		if got := len(DueCards(d, now, DueStrict)); got != 2 {
			t.Errorf("Expected strict policy to ignore status, got %d cards", got)
		}
	})
}

func TestParseDuePolicy(t *testing.T) {
	cases := map[string]DuePolicy{"": DueInclusive, "inclusive": DueInclusive, "strict": DueStrict}
	for in, want := range cases {
		got, err := ParseDuePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseDuePolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseDuePolicy("sometimes"); err == nil {
		t.Error("Expected an error for an unknown policy")
	}
}

func TestStatusJSON(t *testing.T) {
	var c Flashcard
	if err := json.Unmarshal([]byte(`{"id":"a","status":"learning"}`), &c); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.Status != StatusLearning {
		t.Errorf("Expected status learning, got %q", c.Status)
	}
	if err := json.Unmarshal([]byte(`{"id":"a","status":"forgotten"}`), &c); err == nil {
		t.Error("Expected an error for an unknown status")
	}
}

func TestDeckClone(t *testing.T) {
	d := Deck{Cards: []Flashcard{{ID: "a", Tags: []string{"x"}}}}
	c := d.Clone()
	c.Cards[0].Tags[0] = "y"
	c.Cards[0].Front = "changed"
	if d.Cards[0].Tags[0] != "x" || d.Cards[0].Front != "" {
		t.Error("Expected clone to be independent of the original deck")
	}
	if d.Card("a") != 0 || d.Card("missing") != -1 {
		t.Error("Card lookup returned the wrong index")
	}
}
