package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/studydeck/internal/cardhash"
	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/parser"
	"github.com/conorfennell/studydeck/internal/sm2"
)

const (
	// DefaultKey is the well-known key holding the serialized deck collection.
	DefaultKey        = "studydeck_flashcard_decks"
	defaultMaxRetries = 5
	defaultCardType   = "basic"
)

// ErrInvalidDeck is returned for decks that cannot be stored as given.
var ErrInvalidDeck = errors.New("storage: invalid deck")

// DeckStore persists the whole deck collection under a single key of a Backend.
// Every mutation is a read-modify-write guarded by the backend's version token
// and retried when another writer got there first.
type DeckStore struct {
	backend    Backend
	key        string
	log        *slog.Logger
	now        func() time.Time
	newID      func() string
	maxRetries int
	params     *sm2.Params
}

// Option configures a DeckStore.
type Option func(*DeckStore)

func WithKey(key string) Option                { return func(s *DeckStore) { s.key = key } }
func WithLogger(l *slog.Logger) Option         { return func(s *DeckStore) { s.log = l } }
func WithClock(now func() time.Time) Option    { return func(s *DeckStore) { s.now = now } }
func WithIDGenerator(f func() string) Option   { return func(s *DeckStore) { s.newID = f } }
func WithMaxRetries(n int) Option              { return func(s *DeckStore) { s.maxRetries = n } }
func WithSchedulerParams(p *sm2.Params) Option { return func(s *DeckStore) { s.params = p } }

// NewDeckStore returns a store over the given backend.
func NewDeckStore(b Backend, opts ...Option) *DeckStore {
	s := &DeckStore{
		backend:    b,
		key:        DefaultKey,
		log:        slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
		maxRetries: defaultMaxRetries,
		params:     sm2.DefaultParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxRetries < 1 {
		s.maxRetries = 1
	}
	return s
}

// Now returns the store's current time.
func (s *DeckStore) Now() time.Time { return s.now() }

// Load returns all stored decks. An absent key yields an empty collection.
// Unparsable data yields an empty collection and an error wrapping ErrCorruptData.
func (s *DeckStore) Load(ctx context.Context) ([]domain.Deck, error) {
	decks, _, err := s.read(ctx)
	if err != nil {
		return []domain.Deck{}, err
	}
	return decks, nil
}

// List returns all stored decks, or an empty collection if they cannot be read.
// Failures are logged rather than returned.
func (s *DeckStore) List(ctx context.Context) []domain.Deck {
	decks, err := s.Load(ctx)
	if err != nil {
		s.log.Warn("Failed to load decks", "key", s.key, "error", err)
	}
	return decks
}

// Get returns the deck with the given id or ErrDeckNotFound.
func (s *DeckStore) Get(ctx context.Context, id string) (*domain.Deck, error) {
	decks, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range decks {
		if decks[i].ID == id {
			return &decks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeckNotFound, id)
}

// FindBySource returns the deck imported from source, or nil if there is none.
func (s *DeckStore) FindBySource(ctx context.Context, source string) (*domain.Deck, error) {
	decks, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range decks {
		if decks[i].Source == source {
			return &decks[i], nil
		}
	}
	return nil, nil
}

// Save replaces the stored deck with the same id, or appends it if none exists.
func (s *DeckStore) Save(ctx context.Context, deck domain.Deck) error {
	if err := checkDeck(deck); err != nil {
		return err
	}
	return s.mutate(ctx, func(decks []domain.Deck) ([]domain.Deck, bool, error) {
		for i := range decks {
			if decks[i].ID == deck.ID {
				decks[i] = deck
				return decks, true, nil
			}
		}
		return append(decks, deck), true, nil
	})
}

// checkDeck rejects decks that Load could not read back.
func checkDeck(deck domain.Deck) error {
	if deck.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDeck)
	}
	for i, c := range deck.Cards {
		if c.ID == "" {
			return fmt.Errorf("%w: card %d has no id", ErrInvalidDeck, i)
		}
		if !c.Status.IsValid() {
			return fmt.Errorf("%w: card %s has invalid status %q", ErrInvalidDeck, c.ID, c.Status)
		}
	}
	return nil
}

// Update applies fn to the stored deck with the given id and persists the result.
// fn may run more than once if a concurrent writer forces a retry.
func (s *DeckStore) Update(ctx context.Context, id string, fn func(*domain.Deck) error) (*domain.Deck, error) {
	var updated domain.Deck
	err := s.mutate(ctx, func(decks []domain.Deck) ([]domain.Deck, bool, error) {
		for i := range decks {
			if decks[i].ID != id {
				continue
			}
			if err := fn(&decks[i]); err != nil {
				return nil, false, err
			}
			if err := checkDeck(decks[i]); err != nil {
				return nil, false, err
			}
			updated = decks[i].Clone()
			return decks, true, nil
		}
		return nil, false, fmt.Errorf("%w: %s", ErrDeckNotFound, id)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the deck with the given id. Deleting an unknown id is a no-op.
func (s *DeckStore) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func(decks []domain.Deck) ([]domain.Deck, bool, error) {
		kept := decks[:0]
		for _, d := range decks {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		return kept, len(kept) != len(decks), nil
	})
}

// CreateFromGenerated builds a new deck for topic from generator output, stores it
// and returns it. Every card is new and due immediately. Entries without a front
// or back are skipped; if cards were supplied but none is valid the result is
// ErrNoValidCards and nothing is stored.
func (s *DeckStore) CreateFromGenerated(ctx context.Context, topic string, generated []domain.GeneratedCard) (*domain.Deck, error) {
	return s.create(ctx, topic, "", generated)
}

// CreateFromSource is CreateFromGenerated for a deck that remembers where its cards came from.
func (s *DeckStore) CreateFromSource(ctx context.Context, topic, source string, generated []domain.GeneratedCard) (*domain.Deck, error) {
	return s.create(ctx, topic, source, generated)
}

func (s *DeckStore) create(ctx context.Context, topic, source string, generated []domain.GeneratedCard) (*domain.Deck, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidDeck)
	}

	now := s.now()
	cards := s.newCards(generated, now, nil)
	if len(generated) > 0 && len(cards) == 0 {
		return nil, ErrNoValidCards
	}

	deck := domain.Deck{
		ID:          s.newID(),
		Title:       topic,
		Topic:       topic,
		Cards:       cards,
		CreatedAt:   domain.Millis(now),
		LastStudied: 0,
		Source:      source,
	}
	if err := s.Save(ctx, deck); err != nil {
		return nil, err
	}
	s.log.Info("Created deck", "deck_id", deck.ID, "topic", topic, "cards", len(cards))
	return &deck, nil
}

// AppendGenerated adds generated cards to an existing deck, skipping cards whose
// content already exists in it. It returns the number of cards added.
func (s *DeckStore) AppendGenerated(ctx context.Context, deckID string, generated []domain.GeneratedCard) (int, error) {
	var added int
	_, err := s.Update(ctx, deckID, func(d *domain.Deck) error {
		seen := cardhash.Set{}
		for _, c := range d.Cards {
			seen.Add(c.Front, c.Back)
		}
		cards := s.newCards(generated, s.now(), seen)
		added = len(cards)
		d.Cards = append(d.Cards, cards...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// ReviewResult is the outcome of RecordReview.
type ReviewResult struct {
	Deck domain.Deck
	Card domain.Flashcard
	At   time.Time
}

// RecordReview schedules one card of a deck with the given grade, bumps the deck's
// last-studied time and persists both in one write.
func (s *DeckStore) RecordReview(ctx context.Context, deckID, cardID string, q sm2.Quality) (*ReviewResult, error) {
	if !q.IsValid() {
		return nil, fmt.Errorf("%w: %d", sm2.ErrInvalidQuality, int(q))
	}
	var res ReviewResult
	deck, err := s.Update(ctx, deckID, func(d *domain.Deck) error {
		i := d.Card(cardID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
		}
		res.At = s.now()
		d.Cards[i] = s.params.Review(d.Cards[i], q, res.At)
		d.LastStudied = domain.Millis(res.At)
		res.Card = d.Cards[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Deck = *deck
	return &res, nil
}

// Summary is the per-deck overview shown on a dashboard.
type Summary struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Topic       string  `json:"topic"`
	Total       int     `json:"total"`
	Due         int     `json:"due"`
	Progress    float64 `json:"progress"`
	CreatedAt   int64   `json:"createdAt"`
	LastStudied int64   `json:"lastStudied"`
}

// Summaries returns an overview of every deck, newest first. Progress is the
// percentage of cards that are not due; an empty deck counts as complete.
func (s *DeckStore) Summaries(ctx context.Context, policy domain.DuePolicy) ([]Summary, error) {
	decks, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Summary, 0, len(decks))
	for _, d := range decks {
		due := len(domain.DueCards(d, now, policy))
		progress := 100.0
		if total := len(d.Cards); total > 0 {
			progress = float64(total-due) / float64(total) * 100
		}
		out = append(out, Summary{
			ID:          d.ID,
			Title:       d.Title,
			Topic:       d.Topic,
			Total:       len(d.Cards),
			Due:         due,
			Progress:    progress,
			CreatedAt:   d.CreatedAt,
			LastStudied: d.LastStudied,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// newCards converts generated entries to new flashcards, dropping invalid entries
// and, when seen is non-nil, duplicates.
func (s *DeckStore) newCards(generated []domain.GeneratedCard, now time.Time, seen cardhash.Set) []domain.Flashcard {
	cards := make([]domain.Flashcard, 0, len(generated))
	for i, g := range generated {
		g = parser.Clean(g)
		if err := parser.Validate(g); err != nil {
			s.log.Warn("Skipping generated card", "index", i, "error", err)
			continue
		}
		if seen != nil && !seen.Add(g.Front, g.Back) {
			continue
		}
		if g.CardType == "" {
			g.CardType = defaultCardType
		}
		cards = append(cards, domain.Flashcard{
			ID:             s.newID(),
			Front:          g.Front,
			Back:           g.Back,
			CardType:       g.CardType,
			Tags:           g.Tags,
			Interval:       0,
			Repetition:     0,
			EaseFactor:     s.params.InitialEase,
			NextReviewDate: domain.Millis(now),
			Status:         domain.StatusNew,
		})
	}
	return cards
}

func (s *DeckStore) read(ctx context.Context) ([]domain.Deck, int64, error) {
	data, version, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read decks: %w", err)
	}
	if len(data) == 0 {
		return []domain.Deck{}, version, nil
	}
	var decks []domain.Deck
	if err := json.Unmarshal(data, &decks); err != nil {
		return nil, version, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if decks == nil {
		decks = []domain.Deck{}
	}
	return decks, version, nil
}

// mutate runs a compare-and-swap cycle over the deck collection. fn reports
// whether it changed anything; unchanged collections are not written back.
// Corrupt data is never overwritten.
func (s *DeckStore) mutate(ctx context.Context, fn func([]domain.Deck) ([]domain.Deck, bool, error)) error {
	for attempt := 1; ; attempt++ {
		decks, version, err := s.read(ctx)
		if err != nil {
			return err
		}
		decks, changed, err := fn(decks)
		if err != nil || !changed {
			return err
		}
		data, err := json.Marshal(decks)
		if err != nil {
			return fmt.Errorf("failed to encode decks: %w", err)
		}
		_, err = s.backend.Put(ctx, s.key, data, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= s.maxRetries {
			return fmt.Errorf("failed to write decks: %w", err)
		}
		s.log.Debug("Retrying deck write after concurrent update", "attempt", attempt)
	}
}
