package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/feedback"
	"github.com/snarg/contentgen/internal/history"
	"github.com/snarg/contentgen/internal/storage"
)

// presignedArtifacts reports every artifact as available at a remote URL.
type presignedArtifacts struct{ storage.ArtifactStore }

func (presignedArtifacts) URL(ctx context.Context, key string) (string, error) {
	return "https://bucket.example.com/" + key + "?sig=abc", nil
}

func (presignedArtifacts) Type() string { return "s3" }

type generationsFixture struct {
	router    chi.Router
	store     *history.Memory
	artifacts *storage.LocalStore
	gen       *history.Generation
}

func newGenerationsFixture(t *testing.T) *generationsFixture {
	t.Helper()
	ctx := context.Background()
	f := &generationsFixture{
		store:     history.NewMemory(0),
		artifacts: storage.NewLocalStore(t.TempDir()),
	}

	outcome := analysis.Evaluate(
		[]analysis.Key{analysis.KeySummary, analysis.KeyBPMN},
		&analysis.Output{Fields: map[analysis.Key]json.RawMessage{
			analysis.KeySummary: json.RawMessage(okSummary),
			analysis.KeyBPMN:    json.RawMessage(okBPMN),
		}},
	)
	f.gen = history.New("text", nil, outcome, 3*time.Second, time.Now())
	for _, s := range outcome.Sections {
		key := storage.Key(f.gen.ID.String(), s.FileName())
		if err := f.artifacts.Save(ctx, key, []byte(s.Content), s.ContentType()); err != nil {
			t.Fatal(err)
		}
		f.gen.Artifacts = append(f.gen.Artifacts, history.Artifact{
			Key: s.Key, Name: s.FileName(), ContentType: s.ContentType(), Size: int64(len(s.Content)),
		})
	}
	if err := f.store.SaveGeneration(ctx, f.gen); err != nil {
		t.Fatal(err)
	}

	f.router = chi.NewRouter()
	NewGenerationsHandler(f.store, f.artifacts, zerolog.Nop()).Routes(f.router)
	return f
}

func (f *generationsFixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestListGenerations(t *testing.T) {
	f := newGenerationsFixture(t)
	latest := history.FromError("files", []string{"a.pdf"}, []analysis.Key{analysis.KeySummary},
		analysis.FailureBanner(), time.Second, time.Now())
	f.store.SaveGeneration(context.Background(), latest)

	t.Run("newest_first", func(t *testing.T) {
		rec := f.get("/generations")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var body struct {
			Generations []history.Generation `json:"generations"`
			Total       int                  `json:"total"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Total != 2 || len(body.Generations) != 2 {
			t.Fatalf("total = %d, want 2", body.Total)
		}
		if body.Generations[0].ID != latest.ID {
			t.Errorf("first = %s, want %s", body.Generations[0].ID, latest.ID)
		}
	})

	t.Run("limit", func(t *testing.T) {
		rec := f.get("/generations?limit=1")
		var body struct {
			Total int `json:"total"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Total != 1 {
			t.Errorf("total = %d, want 1", body.Total)
		}
	})

	t.Run("invalid_limit", func(t *testing.T) {
		if rec := f.get("/generations?limit=abc"); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGetGeneration(t *testing.T) {
	f := newGenerationsFixture(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/generations/" + f.gen.ID.String(), http.StatusOK},
		{"unknown", "/generations/" + uuid.NewString(), http.StatusNotFound},
		{"malformed_id", "/generations/42", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.get(tt.path); rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body = %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetArtifact(t *testing.T) {
	f := newGenerationsFixture(t)
	base := "/generations/" + f.gen.ID.String() + "/artifacts/"

	t.Run("streams_local_file", func(t *testing.T) {
		rec := f.get(base + "Process_Diagram.xml")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
			t.Errorf("Content-Type = %q, want application/xml", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=Process_Diagram.xml" {
			t.Errorf("Content-Disposition = %q", cd)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte("<definitions>")) {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("unknown_artifact", func(t *testing.T) {
		if rec := f.get(base + "Training_Script.txt"); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("redirects_to_presigned_url", func(t *testing.T) {
		r := chi.NewRouter()
		NewGenerationsHandler(f.store, presignedArtifacts{f.artifacts}, zerolog.Nop()).Routes(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", base+"Summary_Table.json", nil))
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		want := "https://bucket.example.com/" + f.gen.ID.String() + "/Summary_Table.json?sig=abc"
		if loc := rec.Header().Get("Location"); loc != want {
			t.Errorf("Location = %q, want %q", loc, want)
		}
	})

	t.Run("missing_object_not_redirected", func(t *testing.T) {
		// recorded in history but never written to the store
		gen := history.New("text", nil, analysis.Outcome{}, time.Second, time.Now())
		gen.Artifacts = []history.Artifact{{Key: analysis.KeyBPMN, Name: "Process_Diagram.xml", ContentType: "application/xml"}}
		if err := f.store.SaveGeneration(context.Background(), gen); err != nil {
			t.Fatal(err)
		}

		r := chi.NewRouter()
		NewGenerationsHandler(f.store, presignedArtifacts{f.artifacts}, zerolog.Nop()).Routes(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/generations/"+gen.ID.String()+"/artifacts/Process_Diagram.xml", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "" {
			t.Errorf("unexpected redirect to %q", loc)
		}
		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Code != ErrNotFound {
			t.Errorf("code = %q, want %q", body.Code, ErrNotFound)
		}
	})
}

func TestGetArchive(t *testing.T) {
	f := newGenerationsFixture(t)

	rec := f.get("/generations/" + f.gen.ID.String() + "/archive")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}

	data := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	names := map[string]bool{}
	for _, zf := range zr.File {
		names[zf.Name] = true
		rc, _ := zf.Open()
		content, _ := io.ReadAll(rc)
		rc.Close()
		if len(content) == 0 {
			t.Errorf("%s is empty", zf.Name)
		}
	}
	if !names["Summary_Table.json"] || !names["Process_Diagram.xml"] || len(names) != 2 {
		t.Errorf("zip entries = %v", names)
	}

	t.Run("no_artifacts", func(t *testing.T) {
		empty := history.FromError("text", nil, []analysis.Key{analysis.KeySummary},
			analysis.FailureBanner(), time.Second, time.Now())
		f.store.SaveGeneration(context.Background(), empty)
		if rec := f.get("/generations/" + empty.ID.String() + "/archive"); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestListFeedbackForGeneration(t *testing.T) {
	f := newGenerationsFixture(t)
	fb, err := feedback.Submission{
		GenerationID: f.gen.ID.String(),
		Output:       "bpmn",
		Rating:       "up",
	}.Build(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	f.store.SaveFeedback(context.Background(), fb)

	rec := f.get("/generations/" + f.gen.ID.String() + "/feedback")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Feedback []feedback.Feedback `json:"feedback"`
		Total    int                 `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 || body.Feedback[0].ID != fb.ID {
		t.Errorf("feedback = %+v", body)
	}

	if rec := f.get("/generations/" + uuid.NewString() + "/feedback"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown generation status = %d, want 404", rec.Code)
	}
}
