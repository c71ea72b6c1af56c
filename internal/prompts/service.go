package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound    = errors.New("modifier not found")
	ErrCoreMissing = errors.New("core system prompt not found")
	ErrNotModifier = errors.New("the core system prompt is not a modifier")
)

// Backend is the prompts API surface the Service needs. *Client implements it.
type Backend interface {
	List(ctx context.Context) ([]Prompt, error)
	Create(ctx context.Context, p NewPrompt) (*Prompt, error)
	Update(ctx context.Context, id int, patch Patch) (*Prompt, error)
	Delete(ctx context.Context, id int) error
}

// Service applies the settings page rules on top of the prompts API.
type Service struct {
	backend Backend
	log     zerolog.Logger
}

func NewService(backend Backend, log zerolog.Logger) *Service {
	return &Service{backend: backend, log: log.With().Str("component", "prompts").Logger()}
}

func (s *Service) split(ctx context.Context) (*Prompt, []Prompt, error) {
	all, err := s.backend.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list prompts: %w", err)
	}
	core, mods := SplitCore(all)
	return core, mods, nil
}

// Modifiers lists all prompts except the core, ordered by sequence.
func (s *Service) Modifiers(ctx context.Context) ([]Prompt, error) {
	_, mods, err := s.split(ctx)
	return mods, err
}

// CorePrompt returns prompt 0.
func (s *Service) CorePrompt(ctx context.Context) (*Prompt, error) {
	core, _, err := s.split(ctx)
	if err != nil {
		return nil, err
	}
	if core == nil {
		return nil, ErrCoreMissing
	}
	return core, nil
}

// AddModifier creates an active modifier at the end of the sequence.
func (s *Service) AddModifier(ctx context.Context, name, description, content string) (*Prompt, error) {
	_, mods, err := s.split(ctx)
	if err != nil {
		return nil, err
	}
	if err := CheckName(name, mods); err != nil {
		return nil, err
	}
	if mods, err = s.compact(ctx, mods); err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = DefaultDescription
	}
	np := NewPrompt{
		Name:        strings.TrimSpace(name),
		Description: description,
		Content:     strings.TrimSpace(content),
		Sequence:    NextSequence(mods),
		Status:      StatusActive,
	}
	created, err := s.backend.Create(ctx, np)
	if err != nil {
		return nil, fmt.Errorf("create modifier: %w", err)
	}
	if created == nil {
		created = &Prompt{Name: np.Name, Description: np.Description, Content: np.Content, Sequence: np.Sequence, Status: np.Status}
	}
	s.log.Info().Int("prompt_id", created.ID).Str("name", created.Name).Int("sequence", created.Sequence).Msg("modifier added")
	return created, nil
}

// EditModifier updates a modifier's content and description. Content is required.
func (s *Service) EditModifier(ctx context.Context, id int, content, description string) (*Prompt, error) {
	if id == CoreID {
		return nil, ErrNotModifier
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrContentRequired
	}
	_, mods, err := s.split(ctx)
	if err != nil {
		return nil, err
	}
	current, ok := find(mods, id)
	if !ok {
		return nil, ErrNotFound
	}
	description = strings.TrimSpace(description)
	updated, err := s.backend.Update(ctx, id, Patch{Content: &content, Description: &description})
	if err != nil {
		return nil, fmt.Errorf("update modifier %d: %w", id, err)
	}
	if updated == nil {
		current.Content, current.Description = content, description
		updated = &current
	}
	s.log.Info().Int("prompt_id", id).Msg("modifier edited")
	return updated, nil
}

// UpdateCorePrompt edits prompt 0. It must already exist.
func (s *Service) UpdateCorePrompt(ctx context.Context, content, description string) (*Prompt, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrContentRequired
	}
	core, err := s.CorePrompt(ctx)
	if err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	updated, err := s.backend.Update(ctx, CoreID, Patch{Content: &content, Description: &description})
	if err != nil {
		return nil, fmt.Errorf("update core prompt: %w", err)
	}
	if updated == nil {
		core.Content, core.Description = content, description
		updated = core
	}
	s.log.Info().Msg("core prompt updated")
	return updated, nil
}

// DeleteModifier removes a modifier. The core prompt is refused.
func (s *Service) DeleteModifier(ctx context.Context, id int) error {
	if id == CoreID {
		return ErrCoreDelete
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete modifier %d: %w", id, err)
	}
	s.log.Info().Int("prompt_id", id).Msg("modifier deleted")

	_, mods, err := s.split(ctx)
	if err != nil {
		return err
	}
	if _, err := s.compact(ctx, mods); err != nil {
		return fmt.Errorf("delete modifier %d: %w", id, err)
	}
	return nil
}

// compact renumbers mods (already in sequence order) to 1..n, patching only
// rows whose sequence moves.
func (s *Service) compact(ctx context.Context, mods []Prompt) ([]Prompt, error) {
	changed := 0
	for i := range mods {
		want := i + 1
		if mods[i].Sequence == want {
			continue
		}
		if _, err := s.backend.Update(ctx, mods[i].ID, Patch{Sequence: ptr(want)}); err != nil {
			return nil, fmt.Errorf("compact sequence for modifier %d: %w", mods[i].ID, err)
		}
		mods[i].Sequence = want
		changed++
	}
	if changed > 0 {
		s.log.Info().Int("changed", changed).Msg("modifier sequence compacted")
	}
	return mods, nil
}

// ToggleModifier flips a modifier between active and inactive.
func (s *Service) ToggleModifier(ctx context.Context, id int) (*Prompt, error) {
	if id == CoreID {
		return nil, ErrNotModifier
	}
	_, mods, err := s.split(ctx)
	if err != nil {
		return nil, err
	}
	current, ok := find(mods, id)
	if !ok {
		return nil, ErrNotFound
	}
	next := ToggleStatus(current.Status)
	updated, err := s.backend.Update(ctx, id, Patch{Status: &next})
	if err != nil {
		return nil, fmt.Errorf("toggle modifier %d: %w", id, err)
	}
	if updated == nil {
		current.Status = next
		updated = &current
	}
	s.log.Info().Int("prompt_id", id).Str("status", string(next)).Msg("modifier toggled")
	return updated, nil
}

// SetSequence reorders modifiers. Assignments are merged over the current
// order and the full set must be unique and within 1..len(modifiers). Only
// rows whose sequence changes are patched.
func (s *Service) SetSequence(ctx context.Context, assignments []Assignment) ([]Prompt, error) {
	_, mods, err := s.split(ctx)
	if err != nil {
		return nil, err
	}

	target := make(map[int]int, len(mods))
	for _, m := range mods {
		target[m.ID] = m.Sequence
	}
	for _, a := range assignments {
		if _, ok := target[a.ID]; !ok {
			return nil, fmt.Errorf("modifier %d: %w", a.ID, ErrNotFound)
		}
		target[a.ID] = a.Sequence
	}

	merged := make([]Assignment, 0, len(mods))
	for _, m := range mods {
		merged = append(merged, Assignment{ID: m.ID, Sequence: target[m.ID]})
	}
	if err := CheckSequences(merged, len(mods)); err != nil {
		return nil, err
	}

	changed := 0
	for i := range mods {
		seq := target[mods[i].ID]
		if seq == mods[i].Sequence {
			continue
		}
		if _, err := s.backend.Update(ctx, mods[i].ID, Patch{Sequence: ptr(seq)}); err != nil {
			return nil, fmt.Errorf("set sequence for modifier %d: %w", mods[i].ID, err)
		}
		mods[i].Sequence = seq
		changed++
	}
	s.log.Info().Int("changed", changed).Int("modifiers", len(mods)).Msg("modifier sequence updated")

	_, ordered := SplitCore(mods)
	return ordered, nil
}

func find(mods []Prompt, id int) (Prompt, bool) {
	for _, m := range mods {
		if m.ID == id {
			return m, true
		}
	}
	return Prompt{}, false
}
