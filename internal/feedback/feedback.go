// Package feedback validates thumbs up/down ratings left on generated outputs.
package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snarg/contentgen/internal/analysis"
)

type Rating string

const (
	RatingUp   Rating = "up"
	RatingDown Rating = "down"
)

// Reasons offered for a down vote.
const (
	ReasonInaccurate = "Content was inaccurate"
	ReasonMissing    = "Missing important information"
	ReasonFormat     = "Format not as expected"
	ReasonOther      = "Other"
)

var Reasons = []string{ReasonInaccurate, ReasonMissing, ReasonFormat, ReasonOther}

var (
	ErrInvalidGeneration = errors.New("generation_id must be a valid UUID")
	ErrInvalidOutput     = errors.New("unknown output key")
	ErrInvalidRating     = errors.New(`rating must be "up" or "down"`)
	ErrReasonRequired    = errors.New("Select feedback option")
	ErrUnknownReason     = errors.New("unknown feedback reason")
	ErrCommentRequired   = errors.New("Please specify your feedback...")
)

// Feedback is one stored rating.
type Feedback struct {
	ID           uuid.UUID    `json:"id"`
	GenerationID uuid.UUID    `json:"generation_id"`
	Output       analysis.Key `json:"output"`
	Rating       Rating       `json:"rating"`
	Reason       string       `json:"reason,omitempty"`
	Comment      string       `json:"comment,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Submission is the raw request from the results page.
type Submission struct {
	GenerationID string `json:"generation_id"`
	Output       string `json:"output"`
	Rating       string `json:"rating"`
	Reason       string `json:"reason"`
	Comment      string `json:"comment"`
}

// Build validates s and returns the Feedback to store. Up votes carry no
// reason or comment. Down votes need a listed reason, and "Other" needs a
// comment.
func (s Submission) Build(now time.Time) (Feedback, error) {
	genID, err := uuid.Parse(strings.TrimSpace(s.GenerationID))
	if err != nil {
		return Feedback{}, ErrInvalidGeneration
	}
	key := analysis.Key(strings.TrimSpace(s.Output))
	if !key.Valid() {
		return Feedback{}, fmt.Errorf("%w: %q", ErrInvalidOutput, s.Output)
	}

	f := Feedback{
		ID:           uuid.New(),
		GenerationID: genID,
		Output:       key,
		Rating:       Rating(strings.ToLower(strings.TrimSpace(s.Rating))),
		CreatedAt:    now.UTC(),
	}

	switch f.Rating {
	case RatingUp:
		return f, nil
	case RatingDown:
	default:
		return Feedback{}, ErrInvalidRating
	}

	reason := strings.TrimSpace(s.Reason)
	if reason == "" {
		return Feedback{}, ErrReasonRequired
	}
	if !knownReason(reason) {
		return Feedback{}, fmt.Errorf("%w: %q", ErrUnknownReason, reason)
	}
	f.Reason = reason
	f.Comment = strings.TrimSpace(s.Comment)
	if reason == ReasonOther && f.Comment == "" {
		return Feedback{}, ErrCommentRequired
	}
	return f, nil
}

func knownReason(r string) bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}
