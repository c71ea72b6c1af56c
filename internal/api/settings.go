package api

import (
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

var ErrTokenLimit = errors.New("token limit must be a positive integer")

// TokenLimit is the prompt token limit shown on the settings page. It lives
// in process memory and resets to its default on restart.
type TokenLimit struct {
	mu    sync.RWMutex
	value int
}

func NewTokenLimit(initial int) *TokenLimit {
	return &TokenLimit{value: initial}
}

func (t *TokenLimit) Get() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

func (t *TokenLimit) Set(v int) error {
	if v <= 0 {
		return ErrTokenLimit
	}
	t.mu.Lock()
	t.value = v
	t.mu.Unlock()
	return nil
}

type SettingsHandler struct {
	limit *TokenLimit
	log   zerolog.Logger
}

func NewSettingsHandler(limit *TokenLimit, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{limit: limit, log: log.With().Str("handler", "settings").Logger()}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/token-limit", h.GetTokenLimit)
	r.Put("/token-limit", h.PutTokenLimit)
}

type tokenLimitBody struct {
	TokenLimit int `json:"token_limit"`
}

// GetTokenLimit handles GET /api/v1/token-limit.
func (h *SettingsHandler) GetTokenLimit(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, tokenLimitBody{TokenLimit: h.limit.Get()})
}

// PutTokenLimit handles PUT /api/v1/token-limit.
func (h *SettingsHandler) PutTokenLimit(w http.ResponseWriter, r *http.Request) {
	var body tokenLimitBody
	if err := DecodeJSON(w, r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid JSON body")
		return
	}
	if err := h.limit.Set(body.TokenLimit); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrValidation, err.Error())
		return
	}
	h.log.Info().Int("token_limit", body.TokenLimit).Msg("token limit updated")
	WriteJSON(w, http.StatusOK, tokenLimitBody{TokenLimit: h.limit.Get()})
}
