package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/feedback"
	"github.com/snarg/contentgen/internal/history"
	"github.com/snarg/contentgen/internal/mqttclient"
)

func TestSubmitFeedback(t *testing.T) {
	store := history.NewMemory(0)
	gen := history.FromError("text", nil, []analysis.Key{analysis.KeySummary},
		analysis.FailureBanner(), time.Second, time.Now())
	store.SaveGeneration(context.Background(), gen)
	id := gen.ID.String()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "thumbs_up",
			body:       `{"generation_id":"` + id + `","output":"summary","rating":"up"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "thumbs_down_with_reason",
			body:       `{"generation_id":"` + id + `","output":"bpmn","rating":"down","reason":"Format not as expected"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "down_without_reason",
			body:       `{"generation_id":"` + id + `","output":"bpmn","rating":"down"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  feedback.ErrReasonRequired.Error(),
		},
		{
			name:       "other_without_comment",
			body:       `{"generation_id":"` + id + `","output":"bpmn","rating":"down","reason":"Other"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  feedback.ErrCommentRequired.Error(),
		},
		{
			name:       "unknown_generation",
			body:       `{"generation_id":"` + uuid.NewString() + `","output":"summary","rating":"up"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed_json",
			body:       `{"generation_id":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			h := NewFeedbackHandler(store, pub, zerolog.Nop())
			rec := httptest.NewRecorder()
			h.Submit(rec, httptest.NewRequest("POST", "/api/v1/feedback", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				var body ErrorResponse
				json.Unmarshal(rec.Body.Bytes(), &body)
				if body.Error != tt.wantError {
					t.Errorf("error = %q, want %q", body.Error, tt.wantError)
				}
			}
			if tt.wantStatus == http.StatusCreated && pub.last() != mqttclient.EventFeedbackCreated {
				t.Errorf("event = %q, want %q", pub.last(), mqttclient.EventFeedbackCreated)
			}
		})
	}

	saved, err := store.ListFeedback(context.Background(), gen.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 2 {
		t.Errorf("stored %d feedback entries, want 2", len(saved))
	}
}

func TestFeedbackReasons(t *testing.T) {
	h := NewFeedbackHandler(history.NewMemory(0), nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.Reasons(rec, httptest.NewRequest("GET", "/api/v1/feedback/reasons", nil))

	var body struct {
		Reasons []string `json:"reasons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Reasons) != 4 || body.Reasons[3] != feedback.ReasonOther {
		t.Errorf("reasons = %v", body.Reasons)
	}
}
