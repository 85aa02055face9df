package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the learning phase of a flashcard.
type Status string

const (
	StatusNew      Status = "new"
	StatusLearning Status = "learning"
	StatusReview   Status = "review"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusLearning, StatusReview:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown statuses so corrupt records surface on load.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid status %s: %w", data, err)
	}
	v := Status(str)
	if !v.IsValid() {
		return fmt.Errorf("invalid status %q", str)
	}
	*s = v
	return nil
}

// GeneratedCard is a question/answer pair as produced by the card generator,
// before it has any scheduling state.
type GeneratedCard struct {
	Front    string   `json:"front" validate:"required"`
	Back     string   `json:"back" validate:"required"`
	CardType string   `json:"cardType"`
	Tags     []string `json:"tags"`
}

// Flashcard is a single learnable unit together with its SM-2 scheduling state.
// Timestamps are milliseconds since the Unix epoch.
type Flashcard struct {
	ID             string   `json:"id"`
	Front          string   `json:"front"`
	Back           string   `json:"back"`
	CardType       string   `json:"cardType"`
	Tags           []string `json:"tags"`
	Interval       int      `json:"interval"`
	Repetition     int      `json:"repetition"`
	EaseFactor     float64  `json:"easeFactor"`
	NextReviewDate int64    `json:"nextReviewDate"`
	Status         Status   `json:"status"`
}

// Deck is a named collection of flashcards on one topic. A deck owns its cards.
type Deck struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Topic       string      `json:"topic"`
	Cards       []Flashcard `json:"cards"`
	CreatedAt   int64       `json:"createdAt"`
	LastStudied int64       `json:"lastStudied"`
	// Source is set for decks created by an import and identifies the file they came from.
	Source string `json:"source,omitempty"`
}

// Card returns the index of the card with the given id, or -1.
func (d *Deck) Card(id string) int {
	for i := range d.Cards {
		if d.Cards[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the deck.
func (d Deck) Clone() Deck {
	out := d
	out.Cards = make([]Flashcard, len(d.Cards))
	for i, c := range d.Cards {
		if c.Tags != nil {
			c.Tags = append([]string(nil), c.Tags...)
		}
		out.Cards[i] = c
	}
	return out
}

// ReviewLog records a single review event for a card.
// Quality uses the SM-2 grades 0 (again), 3 (hard), 4 (good) and 5 (easy).
type ReviewLog struct {
	DeckID    string
	CardID    string
	Timestamp time.Time
	Quality   int
	Interval  int
}

// Millis converts t to milliseconds since the Unix epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts milliseconds since the Unix epoch to a time.Time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
