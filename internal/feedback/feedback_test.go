package feedback

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSubmissionBuild(t *testing.T) {
	gen := uuid.New().String()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  Submission
		err  error
	}{
		{"up_vote", Submission{GenerationID: gen, Output: "bpmn", Rating: "up"}, nil},
		{"up_vote_ignores_reason", Submission{GenerationID: gen, Output: "summary", Rating: "UP", Reason: "anything"}, nil},
		{"down_with_reason", Submission{GenerationID: gen, Output: "bpmn", Rating: "down", Reason: ReasonFormat}, nil},
		{"down_other_with_comment", Submission{GenerationID: gen, Output: "synthesia_script", Rating: "down", Reason: ReasonOther, Comment: "too long"}, nil},
		{"down_no_reason", Submission{GenerationID: gen, Output: "bpmn", Rating: "down"}, ErrReasonRequired},
		{"down_unknown_reason", Submission{GenerationID: gen, Output: "bpmn", Rating: "down", Reason: "meh"}, ErrUnknownReason},
		{"down_other_no_comment", Submission{GenerationID: gen, Output: "bpmn", Rating: "down", Reason: ReasonOther, Comment: "  "}, ErrCommentRequired},
		{"bad_rating", Submission{GenerationID: gen, Output: "bpmn", Rating: "sideways"}, ErrInvalidRating},
		{"bad_output", Submission{GenerationID: gen, Output: "podcast", Rating: "up"}, ErrInvalidOutput},
		{"bad_generation", Submission{GenerationID: "123", Output: "bpmn", Rating: "up"}, ErrInvalidGeneration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.sub.Build(now)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if err != nil {
				return
			}
			if f.ID == uuid.Nil {
				t.Error("feedback id not assigned")
			}
			if !f.CreatedAt.Equal(now) {
				t.Errorf("CreatedAt = %v", f.CreatedAt)
			}
			if f.Rating == RatingUp && (f.Reason != "" || f.Comment != "") {
				t.Errorf("up vote kept reason/comment: %+v", f)
			}
		})
	}
}
