package sm2

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

const day = 24 * time.Hour

func newCard() domain.Flashcard {
	return domain.Flashcard{ID: "c1", EaseFactor: 2.5, Status: domain.StatusNew}
}

func TestReviewFirstPass(t *testing.T) {
	params := DefaultParams()
	now := time.Now()

	got := params.Review(newCard(), Good, now)

	if got.Interval != 1 || got.Repetition != 1 {
		t.Errorf("Expected interval 1 and repetition 1, got %d and %d", got.Interval, got.Repetition)
	}
	// 2.5 + (0.1 - 1*(0.08+1*0.02)) = 2.5
	if math.Abs(got.EaseFactor-2.5) > 1e-9 {
		t.Errorf("Expected ease factor 2.5, got %f", got.EaseFactor)
	}
	if want := domain.Millis(now.Add(day)); got.NextReviewDate != want {
		t.Errorf("Expected next review at %d, got %d", want, got.NextReviewDate)
	}
	if got.Status != domain.StatusReview {
		t.Errorf("Expected status review, got %s", got.Status)
	}
}

func TestReviewSecondPass(t *testing.T) {
	params := DefaultParams()
	now := time.Now()

	first := params.Review(newCard(), Good, now)
	second := params.Review(first, Easy, now)

	if second.Interval != 6 || second.Repetition != 2 {
		t.Errorf("Expected interval 6 and repetition 2, got %d and %d", second.Interval, second.Repetition)
	}
	if math.Abs(second.EaseFactor-2.6) > 1e-9 {
		t.Errorf("Expected ease factor 2.6 after an easy review, got %f", second.EaseFactor)
	}
}

func TestReviewGrowsInterval(t *testing.T) {
	params := DefaultParams()
	card := domain.Flashcard{Interval: 6, Repetition: 2, EaseFactor: 2.5, Status: domain.StatusReview}

	got := params.Review(card, Good, time.Now())

	if got.Interval != 15 {
		t.Errorf("Expected interval round(6*2.5)=15, got %d", got.Interval)
	}
	if got.Repetition != 3 {
		t.Errorf("Expected repetition 3, got %d", got.Repetition)
	}
}

func TestReviewPassNeverSchedulesZeroDays(t *testing.T) {
	params := DefaultParams()
	card := domain.Flashcard{Interval: 0, Repetition: 2, EaseFactor: 2.5, Status: domain.StatusReview}

	got := params.Review(card, Good, time.Now())

	if got.Interval != 1 || got.Repetition != 3 {
		t.Errorf("Expected interval 1 and repetition 3, got %d and %d", got.Interval, got.Repetition)
	}
}

func TestReviewFailure(t *testing.T) {
	params := DefaultParams()
	card := domain.Flashcard{Interval: 10, Repetition: 3, EaseFactor: 2.5, Status: domain.StatusReview}
	now := time.Now()

	got := params.Review(card, Again, now)

	if got.Interval != 1 || got.Repetition != 0 {
		t.Errorf("Expected interval 1 and repetition 0, got %d and %d", got.Interval, got.Repetition)
	}
	// 2.5 + (0.1 - 5*(0.08+5*0.02)) = 1.7
	if math.Abs(got.EaseFactor-1.7) > 1e-9 {
		t.Errorf("Expected ease factor 1.7, got %f", got.EaseFactor)
	}
	if got.Status != domain.StatusLearning {
		t.Errorf("Expected status learning, got %s", got.Status)
	}
	if want := domain.Millis(now.Add(day)); got.NextReviewDate != want {
		t.Errorf("Expected next review at %d, got %d", want, got.NextReviewDate)
	}
}

func TestReviewEaseFloor(t *testing.T) {
	params := DefaultParams()
	now := time.Now()
	grades := []Quality{Again, Hard, Good, Easy, Quality(1), Quality(2)}

	for _, q := range grades {
		card := domain.Flashcard{Interval: 4, Repetition: 2, EaseFactor: 1.3}
		for i := 0; i < 5; i++ {
			card = params.Review(card, q, now)
			if card.EaseFactor < 1.3 {
				t.Fatalf("Ease factor dropped below floor for %s: %f", q, card.EaseFactor)
			}
		}
	}
}

func TestReviewSchedulesFromNow(t *testing.T) {
	params := DefaultParams()
	now := time.UnixMilli(1_700_000_000_000)
	card := domain.Flashcard{Interval: 3, Repetition: 4, EaseFactor: 2.0}

	got := params.Review(card, Hard, now)

	want := domain.Millis(now) + int64(got.Interval)*86_400_000
	if got.NextReviewDate != want {
		t.Errorf("Expected next review %d, got %d", want, got.NextReviewDate)
	}
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		in   string
		want Quality
	}{
		{"again", Again},
		{"Hard", Hard},
		{" GOOD ", Good},
		{"easy", Easy},
		{"0", Again},
		{"5", Easy},
	}
	for _, tt := range tests {
		got, err := ParseQuality(tt.in)
		if err != nil {
			t.Errorf("ParseQuality(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseQuality(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"1", "2", "6", "meh", ""} {
		if _, err := ParseQuality(in); !errors.Is(err, ErrInvalidQuality) {
			t.Errorf("ParseQuality(%q) error = %v, want ErrInvalidQuality", in, err)
		}
	}
}

func TestQualityJSON(t *testing.T) {
	var body struct {
		Quality Quality `json:"quality"`
	}
	if err := json.Unmarshal([]byte(`{"quality":"hard"}`), &body); err != nil || body.Quality != Hard {
		t.Errorf("Expected hard, got %s (err %v)", body.Quality, err)
	}
	if err := json.Unmarshal([]byte(`{"quality":5}`), &body); err != nil || body.Quality != Easy {
		t.Errorf("Expected easy, got %s (err %v)", body.Quality, err)
	}
	if err := json.Unmarshal([]byte(`{"quality":2}`), &body); err == nil {
		t.Error("Expected an error for grade 2")
	}
	if Quality(2).String() != "Quality(2)" {
		t.Errorf("Unexpected string for invalid quality: %s", Quality(2))
	}
}
