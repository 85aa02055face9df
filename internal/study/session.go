// Package study runs a review session over the due cards of one deck.
package study

import (
	"context"
	"errors"
	"fmt"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/sm2"
	"github.com/conorfennell/studydeck/internal/storage"
)

// ErrSessionComplete is returned when rating a card after the queue is exhausted.
var ErrSessionComplete = errors.New("study: session complete")

// Options configures a session.
type Options struct {
	Policy domain.DuePolicy
}

// Session presents the due cards of a deck one at a time and persists each rating.
// A Session is not safe for concurrent use.
type Session struct {
	store   *storage.DeckStore
	deck    domain.Deck
	queue   []domain.Flashcard
	pos     int
	history []domain.ReviewLog
}

// Start loads the deck and builds its study queue at the store's current time.
// A missing deck yields storage.ErrDeckNotFound.
func Start(ctx context.Context, store *storage.DeckStore, deckID string, opts Options) (*Session, error) {
	deck, err := store.Get(ctx, deckID)
	if err != nil {
		return nil, err
	}
	return &Session{
		store: store,
		deck:  *deck,
		queue: domain.DueCards(*deck, store.Now(), opts.Policy),
	}, nil
}

// Deck returns the deck as last persisted by this session.
func (s *Session) Deck() domain.Deck { return s.deck }

// Queue returns the full study queue in presentation order.
func (s *Session) Queue() []domain.Flashcard { return s.queue }

// Current returns the card awaiting a rating, or false when the session is done.
func (s *Session) Current() (domain.Flashcard, bool) {
	if s.Done() {
		return domain.Flashcard{}, false
	}
	return s.queue[s.pos], true
}

// Done reports whether every queued card has been rated.
func (s *Session) Done() bool { return s.pos >= len(s.queue) }

// Remaining returns the number of cards still to be rated.
func (s *Session) Remaining() int { return len(s.queue) - s.pos }

// Rate grades the current card, persists the new schedule and advances the queue.
func (s *Session) Rate(ctx context.Context, q sm2.Quality) (domain.Flashcard, error) {
	card, ok := s.Current()
	if !ok {
		return domain.Flashcard{}, ErrSessionComplete
	}
	if !q.IsValid() {
		return domain.Flashcard{}, fmt.Errorf("%w: %d", sm2.ErrInvalidQuality, int(q))
	}

	res, err := s.store.RecordReview(ctx, s.deck.ID, card.ID, q)
	if err != nil {
		return domain.Flashcard{}, fmt.Errorf("failed to record review of card %s: %w", card.ID, err)
	}

	s.deck = res.Deck
	s.queue[s.pos] = res.Card
	s.history = append(s.history, domain.ReviewLog{
		DeckID:    s.deck.ID,
		CardID:    card.ID,
		Timestamp: res.At,
		Quality:   int(q),
		Interval:  res.Card.Interval,
	})
	s.pos++
	return res.Card, nil
}

// History returns the reviews recorded so far, oldest first.
func (s *Session) History() []domain.ReviewLog { return s.history }

// Stats summarizes the ratings given in a session.
type Stats struct {
	Reviewed int
	Again    int
	Hard     int
	Good     int
	Easy     int
}

// Stats counts the session's ratings by grade.
func (s *Session) Stats() Stats {
	st := Stats{Reviewed: len(s.history)}
	for _, h := range s.history {
		switch sm2.Quality(h.Quality) {
		case sm2.Again:
			st.Again++
		case sm2.Hard:
			st.Hard++
		case sm2.Good:
			st.Good++
		case sm2.Easy:
			st.Easy++
		}
	}
	return st
}
