package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/parser"
	"github.com/conorfennell/studydeck/internal/sm2"
	"github.com/conorfennell/studydeck/internal/storage"
)

const maxBodyBytes = 1 << 20

// Server holds the dependencies for the HTTP server.
type Server struct {
	store  *storage.DeckStore
	policy domain.DuePolicy
	log    *slog.Logger
	router *http.ServeMux
}

// NewServer creates and configures a new server.
func NewServer(store *storage.DeckStore, policy domain.DuePolicy, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store:  store,
		policy: policy,
		log:    log,
		router: http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /decks", s.handleListDecks())
	s.router.HandleFunc("POST /decks", s.handleCreateDeck())
	s.router.HandleFunc("GET /decks/{id}", s.handleGetDeck())
	s.router.HandleFunc("DELETE /decks/{id}", s.handleDeleteDeck())
	s.router.HandleFunc("POST /decks/{id}/cards", s.handleAppendCards())
	s.router.HandleFunc("GET /decks/{id}/due", s.handleGetDue())
	s.router.HandleFunc("POST /decks/{id}/cards/{cardID}/review", s.handlePostReview())
}

// handleListDecks renders the dashboard summaries, newest deck first.
func (s *Server) handleListDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sums, err := s.store.Summaries(r.Context(), s.policy)
		if err != nil {
			if !errors.Is(err, storage.ErrCorruptData) {
				s.fail(w, err, "Error listing decks")
				return
			}
			s.log.Warn("Stored decks are corrupt, listing none", "error", err)
			sums = []storage.Summary{}
		}
		writeJSON(w, http.StatusOK, sums)
	}
}

type createDeckRequest struct {
	Topic string                 `json:"topic"`
	Cards []domain.GeneratedCard `json:"cards"`
	// Raw is unparsed generator output, used when Cards is empty.
	Raw string `json:"raw"`
}

type createDeckResponse struct {
	Deck     *domain.Deck `json:"deck"`
	Rejected []string     `json:"rejected,omitempty"`
}

// handleCreateDeck creates a deck from generated cards or raw generator output.
func (s *Server) handleCreateDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDeckRequest
		if !s.decode(w, r, &req) {
			return
		}

		var cards []domain.GeneratedCard
		var rejected []string
		for i, c := range req.Cards {
			c = parser.Clean(c)
			if err := parser.Validate(c); err != nil {
				rejected = append(rejected, (&parser.EntryError{Index: i, Err: err}).Error())
				continue
			}
			cards = append(cards, c)
		}
		if len(req.Cards) > 0 && len(cards) == 0 {
			s.fail(w, storage.ErrNoValidCards, "Error creating deck")
			return
		}
		if len(req.Cards) == 0 && req.Raw != "" {
			parsed, errs, err := parser.ParseGenerated(req.Raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			cards = parsed
			for _, e := range errs {
				rejected = append(rejected, e.Error())
			}
			if len(cards) == 0 && len(errs) > 0 {
				s.fail(w, storage.ErrNoValidCards, "Error creating deck")
				return
			}
		}

		deck, err := s.store.CreateFromGenerated(r.Context(), req.Topic, cards)
		if err != nil {
			s.fail(w, err, "Error creating deck")
			return
		}
		writeJSON(w, http.StatusCreated, createDeckResponse{Deck: deck, Rejected: rejected})
	}
}

// handleGetDeck renders one deck with all its cards.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck, err := s.store.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			s.fail(w, err, "Error getting deck")
			return
		}
		writeJSON(w, http.StatusOK, deck)
	}
}

// handleDeleteDeck deletes a deck. Unknown ids succeed.
func (s *Server) handleDeleteDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
			s.fail(w, err, "Error deleting deck")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleAppendCards adds generated cards to a deck, skipping duplicates.
func (s *Server) handleAppendCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Cards []domain.GeneratedCard `json:"cards"`
		}
		if !s.decode(w, r, &req) {
			return
		}
		added, err := s.store.AppendGenerated(r.Context(), r.PathValue("id"), req.Cards)
		if err != nil {
			s.fail(w, err, "Error adding cards")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"added": added})
	}
}

// handleGetDue renders the study queue of a deck.
func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck, err := s.store.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			s.fail(w, err, "Error getting due cards")
			return
		}
		due := domain.DueCards(*deck, s.store.Now(), s.policy)
		if due == nil {
			due = []domain.Flashcard{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"deckId": deck.ID,
			"title":  deck.Title,
			"cards":  due,
		})
	}
}

// handlePostReview records a rating for one card and returns the rescheduled card.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Quality *sm2.Quality `json:"quality"`
		}
		if !s.decode(w, r, &req) {
			return
		}
		if req.Quality == nil {
			writeError(w, http.StatusBadRequest, "quality is required")
			return
		}

		res, err := s.store.RecordReview(r.Context(), r.PathValue("id"), r.PathValue("cardID"), *req.Quality)
		if err != nil {
			s.fail(w, err, "Error recording review")
			return
		}
		writeJSON(w, http.StatusOK, res.Card)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// fail maps store errors to status codes; unexpected ones are logged.
func (s *Server) fail(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, storage.ErrDeckNotFound), errors.Is(err, storage.ErrCardNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidDeck), errors.Is(err, storage.ErrNoValidCards), errors.Is(err, sm2.ErrInvalidQuality):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
