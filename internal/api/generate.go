package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/history"
	"github.com/snarg/contentgen/internal/metrics"
	"github.com/snarg/contentgen/internal/mqttclient"
	"github.com/snarg/contentgen/internal/storage"
	"github.com/snarg/contentgen/internal/transcript"
)

// Analyzer runs one generation against the upstream API. *analysis.Client
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Output, error)
}

// GenerateHandler accepts a transcript and format selection, calls the
// analysis API and records the result.
type GenerateHandler struct {
	analyzer  Analyzer
	store     history.Store
	artifacts storage.ArtifactStore
	publisher Publisher
	maxUpload int64
	now       func() time.Time
	log       zerolog.Logger
}

func NewGenerateHandler(analyzer Analyzer, store history.Store, artifacts storage.ArtifactStore, publisher Publisher, maxUpload int64, log zerolog.Logger) *GenerateHandler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &GenerateHandler{
		analyzer:  analyzer,
		store:     store,
		artifacts: artifacts,
		publisher: publisher,
		maxUpload: maxUpload,
		now:       time.Now,
		log:       log.With().Str("handler", "generate").Logger(),
	}
}

func (h *GenerateHandler) Routes(r chi.Router) {
	r.Post("/generate", h.Generate)
}

// GenerateResponse is the outcome plus the id and artifacts of the stored
// generation.
type GenerateResponse struct {
	GenerationID uuid.UUID `json:"generation_id"`
	analysis.Outcome
	Artifacts []history.Artifact `json:"artifacts"`
}

// GenerateError is returned when the analysis call itself failed. The banner
// fields tell the UI which message to show.
type GenerateError struct {
	Error        string            `json:"error"`
	Detail       string            `json:"detail,omitempty"`
	Code         string            `json:"code"`
	Category     analysis.Category `json:"category"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	GenerationID uuid.UUID         `json:"generation_id"`
}

// maxFilesPerRequest bounds the multipart body at this many max-size files.
const maxFilesPerRequest = 10

// Generate handles POST /api/v1/generate.
// Multipart fields: transcript (text) or files (repeated), and formats
// (repeated or comma separated).
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*maxFilesPerRequest+(1<<20))
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrTooLarge, "request body too large")
			return
		}
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	formats, err := analysis.ParseFormatNames(formValues(r.MultipartForm, "formats", "formats[]"))
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrValidation, err.Error())
		return
	}
	if err := formats.Validate(); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrValidation, err.Error())
		return
	}

	files, err := readFiles(r.MultipartForm, "files", "files[]")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, err.Error())
		return
	}
	var text string
	if v := formValues(r.MultipartForm, "transcript"); len(v) > 0 {
		text = v[0]
	}
	input := transcript.Input{Text: text, Files: files}
	if err := input.Validate(); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrValidation, err.Error())
		return
	}
	if err := transcript.CheckSize(files, h.maxUpload); err != nil {
		WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrTooLarge, err.Error())
		return
	}

	keys := formats.Keys()
	fileNames := make([]string, 0, len(files))
	for _, f := range files {
		fileNames = append(fileNames, f.Name)
	}
	log := h.log.With().Str("source", input.Source()).Strs("formats", formats.Names()).Logger()

	metrics.GenerationsInFlight.Inc()
	start := h.now()
	out, err := h.analyzer.Analyze(r.Context(), analysis.Request{Input: input, Keys: keys})
	took := h.now().Sub(start)
	metrics.GenerationsInFlight.Dec()
	metrics.AnalysisDuration.Observe(took.Seconds())

	if err != nil {
		banner := analysis.BannerFor(err)
		gen := history.FromError(input.Source(), fileNames, keys, banner, took, h.now())
		h.save(r.Context(), gen, log)
		metrics.AnalysisRequestsTotal.WithLabelValues("error").Inc()
		publish(h.publisher, log, mqttclient.EventGenerationFailed, gen)
		log.Warn().Err(err).Str("category", string(banner.Category)).Dur("took", took).Msg("analysis failed")

		WriteJSON(w, http.StatusBadGateway, GenerateError{
			Error:        banner.Title,
			Detail:       banner.Detail,
			Code:         ErrUpstream,
			Category:     banner.Category,
			Title:        banner.Title,
			Message:      banner.Message,
			GenerationID: gen.ID,
		})
		return
	}

	outcome := analysis.Evaluate(keys, out)
	gen := history.New(input.Source(), fileNames, outcome, took, h.now())
	for _, s := range outcome.Sections {
		metrics.AnalysisSectionsTotal.WithLabelValues(string(s.Key), "true").Inc()
		if a, ok := h.storeSection(r.Context(), gen.ID, s, log); ok {
			gen.Artifacts = append(gen.Artifacts, a)
		}
	}
	for _, s := range outcome.Warnings {
		metrics.AnalysisSectionsTotal.WithLabelValues(string(s.Key), "false").Inc()
	}
	h.save(r.Context(), gen, log)

	label, event := "success", mqttclient.EventGenerationCompleted
	switch {
	case outcome.Failed:
		label, event = "failed", mqttclient.EventGenerationFailed
	case len(outcome.Warnings) > 0:
		label = "partial"
	}
	metrics.AnalysisRequestsTotal.WithLabelValues(label).Inc()
	publish(h.publisher, log, event, gen)

	log.Info().
		Str("generation_id", gen.ID.String()).
		Int("requested", len(keys)).
		Int("valid", outcome.ValidCount).
		Bool("failed", outcome.Failed).
		Dur("took", took).
		Msg("generation complete")

	WriteJSON(w, http.StatusOK, GenerateResponse{
		GenerationID: gen.ID,
		Outcome:      outcome,
		Artifacts:    gen.Artifacts,
	})
}

// storeSection writes one valid section as a downloadable artifact. A storage
// failure drops the artifact but keeps the section in the response.
func (h *GenerateHandler) storeSection(ctx context.Context, genID uuid.UUID, s analysis.Section, log zerolog.Logger) (history.Artifact, bool) {
	if h.artifacts == nil {
		return history.Artifact{}, false
	}
	name := s.FileName()
	data := []byte(s.Content)
	if err := h.artifacts.Save(ctx, storage.Key(genID.String(), name), data, s.ContentType()); err != nil {
		log.Error().Err(err).Str("artifact", name).Msg("failed to store artifact")
		return history.Artifact{}, false
	}
	return history.Artifact{
		Key:         s.Key,
		Name:        name,
		ContentType: s.ContentType(),
		Size:        int64(len(data)),
	}, true
}

func (h *GenerateHandler) save(ctx context.Context, gen *history.Generation, log zerolog.Logger) {
	if h.store == nil {
		return
	}
	if err := h.store.SaveGeneration(ctx, gen); err != nil {
		log.Error().Err(err).Str("generation_id", gen.ID.String()).Msg("failed to save generation")
	}
}

// formValues returns the values of the first field name present.
func formValues(form *multipart.Form, names ...string) []string {
	for _, n := range names {
		if v, ok := form.Value[n]; ok {
			return v
		}
	}
	return nil
}

func readFiles(form *multipart.Form, names ...string) ([]transcript.File, error) {
	var files []transcript.File
	for _, n := range names {
		for _, fh := range form.File[n] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, errors.New("failed to read " + fh.Filename)
			}
			ct := fh.Header.Get("Content-Type")
			if ct == "" || ct == "application/octet-stream" {
				ct = transcript.ContentTypeFor(fh.Filename)
			}
			files = append(files, transcript.File{Name: fh.Filename, ContentType: ct, Data: data})
		}
	}
	return files, nil
}
