package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/studydeck/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	typePrefix     = "Type:"
	tagsPrefix     = "Tags:"
	separator      = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
)

// ParseMarkdownFile reads a card file from the given path and extracts all cards.
func ParseMarkdownFile(path string) ([]domain.GeneratedCard, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMarkdown(file)
}

// ParseMarkdown extracts cards written as Q:/A: blocks with optional
// single-line Type: and Tags: fields. Questions and answers may span lines.
// A card ends at a "---" line, at the next Q: line, or at end of input.
func ParseMarkdown(r io.Reader) ([]domain.GeneratedCard, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.GeneratedCard
	var current domain.GeneratedCard
	var block []string
	currentState := seeking

	flushBlock := func() {
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingQuestion:
			current.Front = content
		case readingAnswer:
			current.Back = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Front != "" {
			cards = append(cards, current)
		}
		current = domain.GeneratedCard{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.TrimSpace(line) == separator:
			finishCard()
		case strings.HasPrefix(line, questionPrefix):
			if currentState != seeking || current.Front != "" {
				finishCard()
			}
			currentState = readingQuestion
			block = append(block, fieldValue(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			flushBlock()
			currentState = readingAnswer
			block = append(block, fieldValue(line, answerPrefix))
		case strings.HasPrefix(line, typePrefix):
			flushBlock()
			currentState = seeking
			current.CardType = strings.TrimSpace(fieldValue(line, typePrefix))
		case strings.HasPrefix(line, tagsPrefix):
			flushBlock()
			currentState = seeking
			current.Tags = splitTags(fieldValue(line, tagsPrefix))
		case currentState != seeking:
			block = append(block, line)
		}
	}

	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func fieldValue(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
