package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/history"
	"github.com/snarg/contentgen/internal/metrics"
	"github.com/snarg/contentgen/internal/mqttclient"
	"github.com/snarg/contentgen/internal/storage"
	"github.com/snarg/contentgen/internal/transcript"
)

// mockAnalyzer implements Analyzer for testing.
type mockAnalyzer struct {
	lastReq analysis.Request
	calls   int
	fields  map[analysis.Key]string
	err     error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req analysis.Request) (*analysis.Output, error) {
	m.lastReq = req
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := &analysis.Output{Fields: make(map[analysis.Key]json.RawMessage)}
	for k, v := range m.fields {
		out.Fields[k] = json.RawMessage(v)
	}
	return out, nil
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (m *mockPublisher) Publish(event string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockPublisher) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return ""
	}
	return m.events[len(m.events)-1]
}

// failingArtifacts is an ArtifactStore whose writes always fail.
type failingArtifacts struct{ storage.ArtifactStore }

func (failingArtifacts) Save(ctx context.Context, key string, data []byte, contentType string) error {
	return errors.New("disk full")
}

const (
	okSummary = `[{"process":"Invoice approval","owner":"AP team"}]`
	okBPMN    = `"<definitions><process id=\"invoice\"/></definitions>"`
	okDoc     = `{"steps":["receive","approve","pay"]}`
	okScript  = `"Scene 1: Welcome to invoice approval."`
	okMedia   = `"00:00 intro.mp4"`
	naText    = `"N/A"`
)

type generateFixture struct {
	handler   *GenerateHandler
	analyzer  *mockAnalyzer
	store     *history.Memory
	artifacts *storage.LocalStore
	publisher *mockPublisher
}

func newGenerateFixture(t *testing.T, fields map[analysis.Key]string) *generateFixture {
	t.Helper()
	f := &generateFixture{
		analyzer:  &mockAnalyzer{fields: fields},
		store:     history.NewMemory(0),
		artifacts: storage.NewLocalStore(t.TempDir()),
		publisher: &mockPublisher{},
	}
	f.handler = NewGenerateHandler(f.analyzer, f.store, f.artifacts, f.publisher, 1<<20, zerolog.Nop())
	return f
}

type formFile struct {
	field, name string
	data        []byte
}

func buildMultipartForm(t *testing.T, fields map[string][]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, vs := range fields {
		for _, v := range vs {
			writer.WriteField(k, v)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(f.data)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func postGenerate(t *testing.T, h *GenerateHandler, fields map[string][]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := buildMultipartForm(t, fields, files...)
	req := httptest.NewRequest("POST", "/api/v1/generate", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Generate(rec, req)
	return rec
}

func decodeGenerate(t *testing.T, rec *httptest.ResponseRecorder) GenerateResponse {
	t.Helper()
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("JSON decode: %v; body = %s", err, rec.Body.String())
	}
	return resp
}

func TestGenerate_TextTranscript_Success(t *testing.T) {
	f := newGenerateFixture(t, map[analysis.Key]string{
		analysis.KeySummary: okSummary,
		analysis.KeyBPMN:    okBPMN,
	})

	rec := postGenerate(t, f.handler, map[string][]string{
		"transcript": {"Alice: we approve invoices on Mondays."},
		"formats":    {"bpmn"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	// Summary is always requested first
	got := f.analyzer.lastReq.Keys
	if len(got) != 2 || got[0] != analysis.KeySummary || got[1] != analysis.KeyBPMN {
		t.Errorf("requested keys = %v, want [summary bpmn]", got)
	}
	if f.analyzer.lastReq.Input.Text != "Alice: we approve invoices on Mondays." {
		t.Errorf("transcript text = %q", f.analyzer.lastReq.Input.Text)
	}

	resp := decodeGenerate(t, rec)
	if resp.Failed || len(resp.Sections) != 2 || len(resp.Warnings) != 0 {
		t.Fatalf("outcome = %+v", resp.Outcome)
	}
	if len(resp.Artifacts) != 2 {
		t.Fatalf("artifacts = %+v, want 2", resp.Artifacts)
	}
	for _, a := range resp.Artifacts {
		key := storage.Key(resp.GenerationID.String(), a.Name)
		if !f.artifacts.Exists(context.Background(), key) {
			t.Errorf("artifact %s not written to storage", key)
		}
	}

	gen, err := f.store.Generation(context.Background(), resp.GenerationID)
	if err != nil {
		t.Fatalf("generation not stored: %v", err)
	}
	if gen.Source != "text" || gen.SuccessRate != 1 {
		t.Errorf("stored generation = %+v", gen)
	}
	if f.publisher.last() != mqttclient.EventGenerationCompleted {
		t.Errorf("event = %q, want %q", f.publisher.last(), mqttclient.EventGenerationCompleted)
	}
	if v := testutil.ToFloat64(metrics.GenerationsInFlight); v != 0 {
		t.Errorf("in-flight gauge = %v after request, want 0", v)
	}
}

func TestGenerate_FileTranscript(t *testing.T) {
	f := newGenerateFixture(t, map[analysis.Key]string{
		analysis.KeySummary:            okSummary,
		analysis.KeyProcessDescription: okDoc,
	})

	rec := postGenerate(t, f.handler,
		map[string][]string{"formats": {"processDoc"}},
		formFile{"files", "meeting.pdf", []byte("%PDF-1.4 fake")},
		formFile{"files", "notes.txt", []byte("more notes")},
	)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	files := f.analyzer.lastReq.Input.Files
	if len(files) != 2 {
		t.Fatalf("forwarded %d files, want 2", len(files))
	}
	if files[0].ContentType != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", files[0].ContentType)
	}

	resp := decodeGenerate(t, rec)
	gen, _ := f.store.Generation(context.Background(), resp.GenerationID)
	if gen.Source != "files" || len(gen.FileNames) != 2 {
		t.Errorf("stored generation = %+v", gen)
	}
	if _, ok := gen.Artifact("Process_Documentation.json"); !ok {
		t.Errorf("missing process documentation artifact: %+v", gen.Artifacts)
	}
}

func TestGenerate_PartialSuccess(t *testing.T) {
	f := newGenerateFixture(t, map[analysis.Key]string{
		analysis.KeySummary:         okSummary,
		analysis.KeySynthesiaScript: okScript,
		analysis.KeySynthesiaMedia:  naText,
	})

	rec := postGenerate(t, f.handler, map[string][]string{
		"transcript": {"hello"},
		"formats":    {"trainingScript"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeGenerate(t, rec)
	if resp.Failed {
		t.Fatal("2 of 3 valid should not fail")
	}
	if len(resp.Sections) != 2 || len(resp.Warnings) != 1 {
		t.Fatalf("sections = %d, warnings = %d; want 2 and 1", len(resp.Sections), len(resp.Warnings))
	}
	if resp.Warnings[0].Key != analysis.KeySynthesiaMedia {
		t.Errorf("warning key = %s, want synthesia_media", resp.Warnings[0].Key)
	}
	if len(resp.Artifacts) != 2 {
		t.Errorf("artifacts = %d, want 2 (invalid sections are not stored)", len(resp.Artifacts))
	}
}

func TestGenerate_BelowThreshold(t *testing.T) {
	f := newGenerateFixture(t, map[analysis.Key]string{
		analysis.KeySummary:            okSummary,
		analysis.KeyBPMN:               naText,
		analysis.KeyProcessDescription: naText,
	})

	rec := postGenerate(t, f.handler, map[string][]string{
		"transcript": {"hello"},
		"formats":    {"bpmn", "processDoc"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeGenerate(t, rec)
	if !resp.Failed || resp.Banner == nil {
		t.Fatalf("1 of 3 valid should fail with a banner: %+v", resp.Outcome)
	}
	if len(resp.Sections) != 0 || len(resp.Artifacts) != 0 {
		t.Errorf("failed outcome should show nothing: sections=%d artifacts=%d", len(resp.Sections), len(resp.Artifacts))
	}
	if f.publisher.last() != mqttclient.EventGenerationFailed {
		t.Errorf("event = %q, want %q", f.publisher.last(), mqttclient.EventGenerationFailed)
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string][]string
		files      []formFile
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "no_format",
			fields:     map[string][]string{"transcript": {"hello"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    analysis.ErrNoFormat.Error(),
		},
		{
			name:       "unknown_format",
			fields:     map[string][]string{"transcript": {"hello"}, "formats": {"pptx"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "unknown output format",
		},
		{
			name:       "empty_transcript",
			fields:     map[string][]string{"transcript": {"   "}, "formats": {"bpmn"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    transcript.ErrEmptyTranscript.Error(),
		},
		{
			name:       "text_and_files",
			fields:     map[string][]string{"transcript": {"hello"}, "formats": {"bpmn"}},
			files:      []formFile{{"files", "a.txt", []byte("x")}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    transcript.ErrMixedInput.Error(),
		},
		{
			name:       "unsupported_extension",
			fields:     map[string][]string{"formats": {"bpmn"}},
			files:      []formFile{{"files", "slides.pptx", []byte("x")}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Unsupported file format",
		},
		{
			name:       "file_too_large",
			fields:     map[string][]string{"formats": {"bpmn"}},
			files:      []formFile{{"files", "big.txt", bytes.Repeat([]byte("a"), 2<<20)}},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    "file too large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGenerateFixture(t, nil)
			rec := postGenerate(t, f.handler, tt.fields, tt.files...)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body ErrorResponse
			json.Unmarshal(rec.Body.Bytes(), &body)
			if !strings.Contains(body.Error, tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", body.Error, tt.wantMsg)
			}
			if f.analyzer.calls != 0 {
				t.Error("analysis API should not be called for invalid input")
			}
		})
	}
}

func TestGenerate_InvalidMultipart(t *testing.T) {
	f := newGenerateFixture(t, nil)
	req := httptest.NewRequest("POST", "/api/v1/generate", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	f.handler.Generate(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGenerate_UpstreamError(t *testing.T) {
	f := newGenerateFixture(t, nil)
	f.analyzer.err = &analysis.APIError{Status: 500, Detail: "Internal Server Error"}

	rec := postGenerate(t, f.handler, map[string][]string{
		"transcript": {"hello"},
		"formats":    {"bpmn"},
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body GenerateError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body.Code != ErrUpstream || body.Category != analysis.CategoryServer {
		t.Errorf("code = %q, category = %q", body.Code, body.Category)
	}
	if body.Title == "" || body.Message == "" {
		t.Errorf("banner text missing: %+v", body)
	}

	gen, err := f.store.Generation(context.Background(), body.GenerationID)
	if err != nil {
		t.Fatalf("failed generation not stored: %v", err)
	}
	if !gen.Failed || gen.ErrorCategory != string(analysis.CategoryServer) {
		t.Errorf("stored generation = %+v", gen)
	}
	if f.publisher.last() != mqttclient.EventGenerationFailed {
		t.Errorf("event = %q, want %q", f.publisher.last(), mqttclient.EventGenerationFailed)
	}
}

func TestGenerate_StorageFailureKeepsSections(t *testing.T) {
	f := newGenerateFixture(t, map[analysis.Key]string{
		analysis.KeySummary: okSummary,
		analysis.KeyBPMN:    okBPMN,
	})
	f.handler.artifacts = failingArtifacts{}

	rec := postGenerate(t, f.handler, map[string][]string{
		"transcript": {"hello"},
		"formats":    {"bpmn"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeGenerate(t, rec)
	if len(resp.Sections) != 2 || len(resp.Artifacts) != 0 {
		t.Errorf("sections = %d, artifacts = %d; want 2 and 0", len(resp.Sections), len(resp.Artifacts))
	}
}

func TestGenerate_PublishFailureIgnored(t *testing.T) {
	f := newGenerateFixture(t, map[analysis.Key]string{
		analysis.KeySummary: okSummary,
		analysis.KeyBPMN:    okBPMN,
	})
	f.publisher.err = mqttclient.ErrNotConnected

	rec := postGenerate(t, f.handler, map[string][]string{
		"transcript": {"hello"},
		"formats":    {"bpmn"},
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadFilesContentType(t *testing.T) {
	body, ct := buildMultipartForm(t, nil, formFile{"files[]", "minutes.docx", []byte("PK")})
	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", ct)
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}
	files, err := readFiles(req.MultipartForm, "files", "files[]")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	want := "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	if files[0].ContentType != want {
		t.Errorf("content type = %q, want %q", files[0].ContentType, want)
	}
	if string(files[0].Data) != "PK" {
		t.Errorf("data = %q", files[0].Data)
	}
}
