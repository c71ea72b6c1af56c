package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/feedback"
	"github.com/snarg/contentgen/internal/history"
	"github.com/snarg/contentgen/internal/metrics"
	"github.com/snarg/contentgen/internal/mqttclient"
)

type FeedbackHandler struct {
	store     history.Store
	publisher Publisher
	now       func() time.Time
	log       zerolog.Logger
}

func NewFeedbackHandler(store history.Store, publisher Publisher, log zerolog.Logger) *FeedbackHandler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &FeedbackHandler{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		log:       log.With().Str("handler", "feedback").Logger(),
	}
}

func (h *FeedbackHandler) Routes(r chi.Router) {
	r.Post("/feedback", h.Submit)
	r.Get("/feedback/reasons", h.Reasons)
}

// Submit handles POST /api/v1/feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var sub feedback.Submission
	if err := DecodeJSON(w, r, &sub); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid JSON body")
		return
	}
	fb, err := sub.Build(h.now())
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrValidation, err.Error())
		return
	}

	if err := h.store.SaveFeedback(r.Context(), fb); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "generation not found")
			return
		}
		h.log.Error().Err(err).Msg("failed to save feedback")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to save feedback")
		return
	}

	metrics.FeedbackTotal.WithLabelValues(string(fb.Rating)).Inc()
	publish(h.publisher, h.log, mqttclient.EventFeedbackCreated, fb)
	h.log.Info().
		Str("generation_id", fb.GenerationID.String()).
		Str("output", string(fb.Output)).
		Str("rating", string(fb.Rating)).
		Msg("feedback recorded")

	WriteJSON(w, http.StatusCreated, fb)
}

// Reasons handles GET /api/v1/feedback/reasons: the options offered on a
// thumbs-down.
func (h *FeedbackHandler) Reasons(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"reasons": feedback.Reasons})
}
