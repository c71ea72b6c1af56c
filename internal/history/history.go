// Package history records generations and the feedback left on them.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/feedback"
)

var ErrNotFound = errors.New("generation not found")

// Artifact is one downloadable file produced by a generation.
type Artifact struct {
	Key         analysis.Key `json:"key"`
	Name        string       `json:"name"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
}

// Generation is the stored summary of one analysis request.
type Generation struct {
	ID            uuid.UUID      `json:"id"`
	Source        string         `json:"source"`
	FileNames     []string       `json:"file_names,omitempty"`
	Requested     []analysis.Key `json:"requested"`
	Valid         []analysis.Key `json:"valid"`
	Warnings      []analysis.Key `json:"warnings"`
	SuccessRate   float64        `json:"success_rate"`
	Failed        bool           `json:"failed"`
	ErrorCategory string         `json:"error_category,omitempty"`
	Artifacts     []Artifact     `json:"artifacts"`
	DurationMs    int64          `json:"duration_ms"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Artifact returns the artifact with the given file name.
func (g *Generation) Artifact(name string) (Artifact, bool) {
	for _, a := range g.Artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return Artifact{}, false
}

// New builds a Generation from an evaluated outcome. Artifacts are filled in
// by the caller once they are stored.
func New(source string, fileNames []string, o analysis.Outcome, took time.Duration, now time.Time) *Generation {
	g := &Generation{
		ID:          uuid.New(),
		Source:      source,
		FileNames:   fileNames,
		Requested:   o.Requested,
		Valid:       o.Valid(),
		Warnings:    o.WarningKeys(),
		SuccessRate: o.SuccessRate,
		Failed:      o.Failed,
		Artifacts:   []Artifact{},
		DurationMs:  took.Milliseconds(),
		CreatedAt:   now.UTC(),
	}
	if o.Banner != nil {
		g.ErrorCategory = string(o.Banner.Category)
	}
	return g
}

// FromError builds the record for a request that never produced output.
func FromError(source string, fileNames []string, requested []analysis.Key, banner analysis.Banner, took time.Duration, now time.Time) *Generation {
	return &Generation{
		ID:            uuid.New(),
		Source:        source,
		FileNames:     fileNames,
		Requested:     requested,
		Valid:         []analysis.Key{},
		Warnings:      []analysis.Key{},
		Failed:        true,
		ErrorCategory: string(banner.Category),
		Artifacts:     []Artifact{},
		DurationMs:    took.Milliseconds(),
		CreatedAt:     now.UTC(),
	}
}

// Store persists generations and feedback. *database.DB and *Memory implement it.
type Store interface {
	SaveGeneration(ctx context.Context, g *Generation) error
	Generation(ctx context.Context, id uuid.UUID) (*Generation, error)
	// ListGenerations returns newest first. limit <= 0 means no limit.
	ListGenerations(ctx context.Context, limit int) ([]Generation, error)
	SaveFeedback(ctx context.Context, f feedback.Feedback) error
	ListFeedback(ctx context.Context, generationID uuid.UUID) ([]feedback.Feedback, error)
}
