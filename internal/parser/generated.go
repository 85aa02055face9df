package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/studydeck/internal/domain"
)

// ErrNoCards is returned when generator output contains no card list at all.
var ErrNoCards = errors.New("parser: no cards found in generator output")

var validate = validator.New(validator.WithRequiredStructEnabled())

// EntryError describes a generated entry that was rejected.
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("card %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// rawCard mirrors GeneratedCard but tolerates loosely typed tags.
type rawCard struct {
	Front    string          `json:"front"`
	Back     string          `json:"back"`
	CardType string          `json:"cardType"`
	Tags     json.RawMessage `json:"tags"`
}

// ParseGenerated decodes the text returned by the card generator. It accepts a
// JSON array of cards or an object holding the array under "flashcards" or
// "cards", optionally wrapped in a Markdown code fence. Entries that fail
// validation are reported individually and left out of the result.
func ParseGenerated(text string) ([]domain.GeneratedCard, []error, error) {
	payload := stripFence(text)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		var envelope struct {
			Flashcards []json.RawMessage `json:"flashcards"`
			Cards      []json.RawMessage `json:"cards"`
		}
		if envErr := json.Unmarshal([]byte(payload), &envelope); envErr != nil {
			return nil, nil, fmt.Errorf("failed to decode generator output: %w", err)
		}
		raw = envelope.Flashcards
		if raw == nil {
			raw = envelope.Cards
		}
		if raw == nil {
			return nil, nil, ErrNoCards
		}
	}

	var cards []domain.GeneratedCard
	var rejected []error
	for i, entry := range raw {
		var rc rawCard
		if err := json.Unmarshal(entry, &rc); err != nil {
			rejected = append(rejected, &EntryError{Index: i, Err: err})
			continue
		}
		card := Clean(domain.GeneratedCard{
			Front:    rc.Front,
			Back:     rc.Back,
			CardType: rc.CardType,
			Tags:     decodeTags(rc.Tags),
		})
		if err := Validate(card); err != nil {
			rejected = append(rejected, &EntryError{Index: i, Err: err})
			continue
		}
		cards = append(cards, card)
	}
	return cards, rejected, nil
}

// Clean trims whitespace from every field and drops empty tags.
func Clean(c domain.GeneratedCard) domain.GeneratedCard {
	c.Front = strings.TrimSpace(c.Front)
	c.Back = strings.TrimSpace(c.Back)
	c.CardType = strings.TrimSpace(c.CardType)
	tags := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	c.Tags = tags
	return c
}

// Validate checks that a generated card has both a front and a back.
func Validate(c domain.GeneratedCard) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("invalid card: %s", strings.Join(msgs, ", "))
		}
		return err
	}
	return nil
}

// decodeTags accepts ["a","b"] or "a, b".
func decodeTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return splitTags(joined)
	}
	return nil
}

func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
