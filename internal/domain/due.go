package domain

import (
	"fmt"
	"time"
)

// DuePolicy decides which cards go into a study queue.
type DuePolicy int

const (
	// DueInclusive selects cards whose review date has passed and any card still in learning.
	DueInclusive DuePolicy = iota
	// DueStrict selects only cards whose review date has passed.
	DueStrict
)

// ParseDuePolicy maps a configuration value to a DuePolicy.
func ParseDuePolicy(s string) (DuePolicy, error) {
	switch s {
	case "", "inclusive":
		return DueInclusive, nil
	case "strict":
		return DueStrict, nil
	}
	return 0, fmt.Errorf("unknown due policy %q", s)
}

func (p DuePolicy) String() string {
	if p == DueStrict {
		return "strict"
	}
	return "inclusive"
}

// IsDue reports whether the card belongs in a study queue at now.
func (p DuePolicy) IsDue(c Flashcard, now time.Time) bool {
	if c.NextReviewDate <= Millis(now) {
		return true
	}
	return p == DueInclusive && c.Status == StatusLearning
}

// DueCards returns the cards of the deck that are due at now, in deck order.
func DueCards(d Deck, now time.Time, p DuePolicy) []Flashcard {
	var due []Flashcard
	for _, c := range d.Cards {
		if p.IsDue(c, now) {
			due = append(due, c)
		}
	}
	return due
}
