package api

import (
	"archive/zip"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/history"
	"github.com/snarg/contentgen/internal/storage"
)

type GenerationsHandler struct {
	store     history.Store
	artifacts storage.ArtifactStore
	log       zerolog.Logger
}

func NewGenerationsHandler(store history.Store, artifacts storage.ArtifactStore, log zerolog.Logger) *GenerationsHandler {
	return &GenerationsHandler{
		store:     store,
		artifacts: artifacts,
		log:       log.With().Str("handler", "generations").Logger(),
	}
}

func (h *GenerationsHandler) Routes(r chi.Router) {
	r.Get("/generations", h.ListGenerations)
	r.Get("/generations/{id}", h.GetGeneration)
	r.Get("/generations/{id}/artifacts/{name}", h.GetArtifact)
	r.Get("/generations/{id}/archive", h.GetArchive)
	r.Get("/generations/{id}/feedback", h.ListFeedback)
}

// ListGenerations handles GET /api/v1/generations, newest first.
func (h *GenerationsHandler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r, 20, 100)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	gens, err := h.store.ListGenerations(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list generations")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to list generations")
		return
	}
	if gens == nil {
		gens = []history.Generation{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"generations": gens,
		"total":       len(gens),
	})
}

// GetGeneration handles GET /api/v1/generations/{id}.
func (h *GenerationsHandler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	gen, ok := h.lookup(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, gen)
}

// GetArtifact handles GET /api/v1/generations/{id}/artifacts/{name}.
// S3-backed artifacts redirect to a presigned URL; local ones are streamed.
func (h *GenerationsHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	gen, ok := h.lookup(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	art, ok := gen.Artifact(name)
	if !ok {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "artifact not found")
		return
	}
	key := storage.Key(gen.ID.String(), art.Name)

	// a failed save leaves the record without an object; don't redirect to it
	if !h.artifacts.Exists(r.Context(), key) {
		h.log.Warn().Str("key", key).Str("store", h.artifacts.Type()).Msg("artifact missing from storage")
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "artifact file not found")
		return
	}

	if url, err := h.artifacts.URL(r.Context(), key); err == nil && url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	rc, err := h.artifacts.Open(r.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("failed to open artifact")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to read artifact")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	io.Copy(w, rc)
}

// GetArchive handles GET /api/v1/generations/{id}/archive: every artifact of
// the generation in one zip.
func (h *GenerationsHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	gen, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if len(gen.Artifacts) == 0 {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "generation has no artifacts")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": "generated-content-" + gen.ID.String()[:8] + ".zip",
	}))

	zw := zip.NewWriter(w)
	for _, art := range gen.Artifacts {
		key := storage.Key(gen.ID.String(), art.Name)
		rc, err := h.artifacts.Open(r.Context(), key)
		if err != nil {
			// Headers are already sent; skip the file rather than corrupt the zip.
			h.log.Warn().Err(err).Str("key", key).Msg("artifact missing from archive")
			continue
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     art.Name,
			Method:   zip.Deflate,
			Modified: gen.CreatedAt,
		})
		if err == nil {
			_, err = io.Copy(fw, rc)
		}
		rc.Close()
		if err != nil {
			h.log.Error().Err(err).Str("key", key).Msg("archive write failed")
			return
		}
	}
	if err := zw.Close(); err != nil {
		h.log.Error().Err(err).Msg("archive close failed")
	}
}

// ListFeedback handles GET /api/v1/generations/{id}/feedback.
func (h *GenerationsHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := PathUUID(r, "id")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "invalid generation id")
		return
	}
	items, err := h.store.ListFeedback(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "generation not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list feedback")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to list feedback")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"feedback": items,
		"total":    len(items),
	})
}

func (h *GenerationsHandler) lookup(w http.ResponseWriter, r *http.Request) (*history.Generation, bool) {
	id, err := PathUUID(r, "id")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "invalid generation id")
		return nil, false
	}
	gen, err := h.store.Generation(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "generation not found")
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id.String()).Msg("failed to load generation")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to load generation")
		return nil, false
	}
	return gen, true
}
