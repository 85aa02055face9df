package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMarkdown(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expectedFront string
		expectedBack  string
		expectedType  string
		expectedTags  []string
	}{
		{
			name:          "Simple Q&A",
			input:         "Q: What is the capital of France?\nA: Paris",
			expectedCards: 1,
			expectedFront: "What is the capital of France?",
			expectedBack:  "Paris",
		},
		{
			name:          "Type and tags",
			input:         "Q: What is 1+1?\nA: 2\nType: definition\nTags: math, arithmetic ,",
			expectedCards: 1,
			expectedFront: "What is 1+1?",
			expectedBack:  "2",
			expectedType:  "definition",
			expectedTags:  []string{"math", "arithmetic"},
		},
		{
			name: "Multiline Answer",
			input: `
Q: What are the primary colors?
A: Red
Blue
Yellow
`,
			expectedCards: 1,
			expectedFront: "What are the primary colors?",
			expectedBack:  "Red\nBlue\nYellow",
		},
		{
			name: "Two Cards",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name: "Separator ends a card",
			input: `
Type: concept
Q: What is Go?
A: A statically typed, compiled programming language.
It was designed at Google.
---
Q: Orphan question without answer
`,
			expectedCards: 2,
		},
		{
			name:          "No cards, just text",
			input:         "This is a file with no questions.",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "Q:Question\nA:Answer",
			expectedCards: 1,
			expectedFront: "Question",
			expectedBack:  "Answer",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cards, err := ParseMarkdown(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("ParseMarkdown() returned an unexpected error: %v", err)
			}

			if len(cards) != tc.expectedCards {
				t.Fatalf("Expected %d cards, but got %d", tc.expectedCards, len(cards))
			}

			if tc.expectedCards == 1 {
				card := cards[0]
				if card.Front != tc.expectedFront {
					t.Errorf("Expected Front to be '%s', but got '%s'", tc.expectedFront, card.Front)
				}
				if card.Back != tc.expectedBack {
					t.Errorf("Expected Back to be '%s', but got '%s'", tc.expectedBack, card.Back)
				}
				if card.CardType != tc.expectedType {
					t.Errorf("Expected CardType to be '%s', but got '%s'", tc.expectedType, card.CardType)
				}
				if strings.Join(card.Tags, "|") != strings.Join(tc.expectedTags, "|") {
					t.Errorf("Expected Tags %v, but got %v", tc.expectedTags, card.Tags)
				}
			}
		})
	}
}

func TestParseMarkdownKeepsTypeDeclaredFirst(t *testing.T) {
	cards, err := ParseMarkdown(strings.NewReader("Type: concept\nQ: What is Go?\nA: A language\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(cards) != 1 || cards[0].CardType != "concept" {
		t.Fatalf("Expected one concept card, got %+v", cards)
	}
}

func TestParseGenerated(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		cards, rejected, err := ParseGenerated(`[
			{"front":"What is Go?","back":"A language","cardType":"concept","tags":["go"]},
			{"front":"  Who made it? ","back":"Google"}
		]`)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(rejected) != 0 {
			t.Errorf("Expected no rejected entries, got %v", rejected)
		}
		if len(cards) != 2 {
			t.Fatalf("Expected 2 cards, got %d", len(cards))
		}
		if cards[1].Front != "Who made it?" {
			t.Errorf("Expected front to be trimmed, got %q", cards[1].Front)
		}
		if cards[1].Tags == nil {
			t.Error("Expected missing tags to become an empty list")
		}
	})

	t.Run("fenced envelope", func(t *testing.T) {
		text := "```json\n{\"flashcards\":[{\"front\":\"Q\",\"back\":\"A\",\"tags\":\"x, y\"}]}\n```"
		cards, _, err := ParseGenerated(text)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(cards) != 1 || len(cards[0].Tags) != 2 {
			t.Fatalf("Expected one card with two tags, got %+v", cards)
		}
	})

	t.Run("invalid entries are rejected", func(t *testing.T) {
		cards, rejected, err := ParseGenerated(`[{"front":"Q","back":""},{"back":"A"},{"front":"Q2","back":"A2"},42]`)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(cards) != 1 {
			t.Errorf("Expected 1 valid card, got %d", len(cards))
		}
		if len(rejected) != 3 {
			t.Fatalf("Expected 3 rejected entries, got %d", len(rejected))
		}
		var entryErr *EntryError
		if !errors.As(rejected[1], &entryErr) || entryErr.Index != 1 {
			t.Errorf("Expected an EntryError for index 1, got %v", rejected[1])
		}
		if !strings.Contains(rejected[0].Error(), "back is required") {
			t.Errorf("Expected message about the back, got %q", rejected[0].Error())
		}
	})

	t.Run("object without cards", func(t *testing.T) {
		if _, _, err := ParseGenerated(`{"topic":"go"}`); !errors.Is(err, ErrNoCards) {
			t.Errorf("Expected ErrNoCards, got %v", err)
		}
	})

	t.Run("not json", func(t *testing.T) {
		if _, _, err := ParseGenerated("Sure! Here are your flashcards."); err == nil {
			t.Error("Expected a decode error")
		}
	})
}
