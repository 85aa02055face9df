package sm2

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// ErrInvalidQuality is returned when a grade is not one of Again, Hard, Good or Easy.
var ErrInvalidQuality = errors.New("sm2: invalid quality")

// Quality is the user's recall grade for a card review.
type Quality int

const (
	Again Quality = 0
	Hard  Quality = 3
	Good  Quality = 4
	Easy  Quality = 5
)

var qualityNames = map[Quality]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

// IsValid reports whether q is one of the four sanctioned grades.
func (q Quality) IsValid() bool {
	_, ok := qualityNames[q]
	return ok
}

func (q Quality) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// ParseQuality accepts a grade name (case-insensitive) or its integer value.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for q, name := range qualityNames {
		if s == name {
			return q, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Quality(n).IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
	}
	return Quality(n), nil
}

// UnmarshalJSON accepts either a grade name or a number.
func (q *Quality) UnmarshalJSON(data []byte) error {
	v, err := ParseQuality(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// Params holds the constants of the SM-2 variant.
type Params struct {
	InitialEase    float64 // ease factor of a new card
	MinEase        float64 // ease factor floor
	PassThreshold  Quality // grades at or above this count as recalled
	FirstInterval  int     // days after the first successful review
	SecondInterval int     // days after the second successful review
}

// DefaultParams returns the classic SM-2 constants.
func DefaultParams() *Params {
	return &Params{
		InitialEase:    2.5,
		MinEase:        1.3,
		PassThreshold:  Hard,
		FirstInterval:  1,
		SecondInterval: 6,
	}
}

// Review applies a grade to a card reviewed at now and returns the rescheduled card.
// The formula is applied verbatim to any integer grade; callers validate input with IsValid.
func (p *Params) Review(card domain.Flashcard, q Quality, now time.Time) domain.Flashcard {
	interval, repetition := card.Interval, card.Repetition

	if q >= p.PassThreshold {
		switch repetition {
		case 0:
			interval = p.FirstInterval
		case 1:
			interval = p.SecondInterval
		default:
			interval = max(p.FirstInterval, int(math.Round(float64(interval)*card.EaseFactor)))
		}
		repetition++
	} else {
		repetition = 0
		interval = p.FirstInterval
	}

	card.Interval = interval
	card.Repetition = repetition
	card.EaseFactor = p.nextEase(card.EaseFactor, q)
	card.NextReviewDate = domain.Millis(NextReviewDate(now, interval))
	if q < p.PassThreshold {
		card.Status = domain.StatusLearning
	} else {
		card.Status = domain.StatusReview
	}
	return card
}

// nextEase is EF' = EF + (0.1 - (5-q) * (0.08 + (5-q) * 0.02)), floored at MinEase.
func (p *Params) nextEase(ease float64, q Quality) float64 {
	d := float64(5 - q)
	ease += 0.1 - d*(0.08+d*0.02)
	return math.Max(ease, p.MinEase)
}

// NextReviewDate returns the time interval days after now.
func NextReviewDate(now time.Time, interval int) time.Time {
	return now.Add(time.Duration(interval) * 24 * time.Hour)
}
