package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/metrics"
	"github.com/snarg/contentgen/internal/mqttclient"
	"github.com/snarg/contentgen/internal/prompts"
)

// ModifierService is the settings page's view of the prompts store.
// *prompts.Service implements it.
type ModifierService interface {
	Modifiers(ctx context.Context) ([]prompts.Prompt, error)
	CorePrompt(ctx context.Context) (*prompts.Prompt, error)
	AddModifier(ctx context.Context, name, description, content string) (*prompts.Prompt, error)
	EditModifier(ctx context.Context, id int, content, description string) (*prompts.Prompt, error)
	UpdateCorePrompt(ctx context.Context, content, description string) (*prompts.Prompt, error)
	DeleteModifier(ctx context.Context, id int) error
	ToggleModifier(ctx context.Context, id int) (*prompts.Prompt, error)
	SetSequence(ctx context.Context, assignments []prompts.Assignment) ([]prompts.Prompt, error)
}

type ModifiersHandler struct {
	svc       ModifierService
	publisher Publisher
	log       zerolog.Logger
}

func NewModifiersHandler(svc ModifierService, publisher Publisher, log zerolog.Logger) *ModifiersHandler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &ModifiersHandler{
		svc:       svc,
		publisher: publisher,
		log:       log.With().Str("handler", "modifiers").Logger(),
	}
}

func (h *ModifiersHandler) Routes(r chi.Router) {
	r.Get("/modifiers", h.ListModifiers)
	r.Post("/modifiers", h.CreateModifier)
	r.Put("/modifiers/sequence", h.SetSequence)
	r.Patch("/modifiers/{id}", h.UpdateModifier)
	r.Post("/modifiers/{id}/toggle", h.ToggleModifier)
	r.Delete("/modifiers/{id}", h.DeleteModifier)
	r.Get("/core-prompt", h.GetCorePrompt)
	r.Put("/core-prompt", h.UpdateCorePrompt)
}

type modifierEvent struct {
	Op       string          `json:"op"`
	PromptID int             `json:"prompt_id"`
	Prompt   *prompts.Prompt `json:"prompt,omitempty"`
}

// ListModifiers handles GET /api/v1/modifiers.
func (h *ModifiersHandler) ListModifiers(w http.ResponseWriter, r *http.Request) {
	mods, err := h.svc.Modifiers(r.Context())
	if err != nil {
		h.writeError(w, "list", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"modifiers": mods,
		"total":     len(mods),
	})
}

type createModifierRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// CreateModifier handles POST /api/v1/modifiers.
func (h *ModifiersHandler) CreateModifier(w http.ResponseWriter, r *http.Request) {
	var req createModifierRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid JSON body")
		return
	}
	p, err := h.svc.AddModifier(r.Context(), req.Name, req.Description, req.Content)
	h.record("add", err)
	if err != nil {
		h.writeError(w, "add", err)
		return
	}
	publish(h.publisher, h.log, mqttclient.EventModifierChanged, modifierEvent{Op: "add", PromptID: p.ID, Prompt: p})
	WriteJSON(w, http.StatusCreated, p)
}

type updateModifierRequest struct {
	Content     string `json:"content"`
	Description string `json:"description"`
}

// UpdateModifier handles PATCH /api/v1/modifiers/{id}.
func (h *ModifiersHandler) UpdateModifier(w http.ResponseWriter, r *http.Request) {
	id, ok := modifierID(w, r)
	if !ok {
		return
	}
	var req updateModifierRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid JSON body")
		return
	}
	p, err := h.svc.EditModifier(r.Context(), id, req.Content, req.Description)
	h.record("edit", err)
	if err != nil {
		h.writeError(w, "edit", err)
		return
	}
	publish(h.publisher, h.log, mqttclient.EventModifierChanged, modifierEvent{Op: "edit", PromptID: id, Prompt: p})
	WriteJSON(w, http.StatusOK, p)
}

// ToggleModifier handles POST /api/v1/modifiers/{id}/toggle.
func (h *ModifiersHandler) ToggleModifier(w http.ResponseWriter, r *http.Request) {
	id, ok := modifierID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.ToggleModifier(r.Context(), id)
	h.record("toggle", err)
	if err != nil {
		h.writeError(w, "toggle", err)
		return
	}
	publish(h.publisher, h.log, mqttclient.EventModifierChanged, modifierEvent{Op: "toggle", PromptID: id, Prompt: p})
	WriteJSON(w, http.StatusOK, p)
}

// DeleteModifier handles DELETE /api/v1/modifiers/{id}.
func (h *ModifiersHandler) DeleteModifier(w http.ResponseWriter, r *http.Request) {
	id, ok := modifierID(w, r)
	if !ok {
		return
	}
	err := h.svc.DeleteModifier(r.Context(), id)
	h.record("delete", err)
	if err != nil {
		h.writeError(w, "delete", err)
		return
	}
	publish(h.publisher, h.log, mqttclient.EventModifierChanged, modifierEvent{Op: "delete", PromptID: id})
	w.WriteHeader(http.StatusNoContent)
}

type sequenceRequest struct {
	Assignments []struct {
		ID       int             `json:"prompt_id"`
		Sequence json.RawMessage `json:"sequence"`
	} `json:"assignments"`
}

// SetSequence handles PUT /api/v1/modifiers/sequence. Sequence values may be
// numbers or the raw strings typed into the sequence field.
func (h *ModifiersHandler) SetSequence(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid JSON body")
		return
	}
	if len(req.Assignments) == 0 {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrValidation, "assignments are required")
		return
	}

	mods, err := h.svc.Modifiers(r.Context())
	if err != nil {
		h.writeError(w, "sequence", err)
		return
	}
	assignments := make([]prompts.Assignment, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		seq, err := prompts.ParseSequence(sequenceText(a.Sequence), len(mods))
		if err != nil {
			h.record("sequence", err)
			h.writeError(w, "sequence", err)
			return
		}
		assignments = append(assignments, prompts.Assignment{ID: a.ID, Sequence: seq})
	}

	ordered, err := h.svc.SetSequence(r.Context(), assignments)
	h.record("sequence", err)
	if err != nil {
		h.writeError(w, "sequence", err)
		return
	}
	publish(h.publisher, h.log, mqttclient.EventModifierChanged, modifierEvent{Op: "sequence"})
	WriteJSON(w, http.StatusOK, map[string]any{
		"modifiers": ordered,
		"total":     len(ordered),
	})
}

// GetCorePrompt handles GET /api/v1/core-prompt.
func (h *ModifiersHandler) GetCorePrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CorePrompt(r.Context())
	if err != nil {
		h.writeError(w, "core_get", err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// UpdateCorePrompt handles PUT /api/v1/core-prompt.
func (h *ModifiersHandler) UpdateCorePrompt(w http.ResponseWriter, r *http.Request) {
	var req updateModifierRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid JSON body")
		return
	}
	p, err := h.svc.UpdateCorePrompt(r.Context(), req.Content, req.Description)
	h.record("core_update", err)
	if err != nil {
		h.writeError(w, "core_update", err)
		return
	}
	publish(h.publisher, h.log, mqttclient.EventModifierChanged, modifierEvent{Op: "core_update", PromptID: prompts.CoreID, Prompt: p})
	WriteJSON(w, http.StatusOK, p)
}

func (h *ModifiersHandler) record(op string, err error) {
	metrics.ModifierOperationsTotal.WithLabelValues(op, metrics.Result(err)).Inc()
}

// writeError maps prompts errors onto HTTP statuses: rule violations are 400,
// duplicates 409, missing records 404 and upstream failures 502.
func (h *ModifiersHandler) writeError(w http.ResponseWriter, op string, err error) {
	var apiErr *prompts.APIError
	switch {
	case errors.Is(err, prompts.ErrNameExists):
		WriteErrorWithCode(w, http.StatusConflict, ErrConflict, err.Error())
	case errors.Is(err, prompts.ErrNotFound), errors.Is(err, prompts.ErrCoreMissing):
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, err.Error())
	case isRuleError(err):
		WriteErrorWithCode(w, http.StatusBadRequest, ErrValidation, ruleMessage(err))
	case errors.As(err, &apiErr):
		h.log.Warn().Err(err).Str("op", op).Msg("prompts API request failed")
		status := http.StatusBadGateway
		if apiErr.Status == http.StatusNotFound {
			status = http.StatusNotFound
		}
		WriteErrorDetail(w, status, ErrUpstream, "prompts API request failed", apiErr.Detail)
	default:
		h.log.Error().Err(err).Str("op", op).Msg("modifier operation failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "modifier operation failed")
	}
}

var ruleErrors = []error{
	prompts.ErrNameRequired,
	prompts.ErrContentRequired,
	prompts.ErrSequenceEmpty,
	prompts.ErrSequenceNotNumber,
	prompts.ErrSequenceTooLarge,
	prompts.ErrSequenceNotPositive,
	prompts.ErrSequenceDuplicate,
	prompts.ErrEmptyPatch,
	prompts.ErrCoreDelete,
	prompts.ErrInvalidID,
	prompts.ErrNotModifier,
}

func isRuleError(err error) bool {
	return ruleMessage(err) != ""
}

// ruleMessage returns the user-facing text of the rule err violates, without
// any wrapping context.
func ruleMessage(err error) string {
	for _, re := range ruleErrors {
		if errors.Is(err, re) {
			return re.Error()
		}
	}
	return ""
}

func modifierID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := PathInt(r, "id")
	if err != nil || id < 0 {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "invalid modifier id")
		return 0, false
	}
	return id, true
}

// sequenceText turns a JSON number or string into the text a user would have
// typed. null and missing values become "".
func sequenceText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}
