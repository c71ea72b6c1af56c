package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type seenRequest struct {
	method string
	path   string
	header http.Header
	body   string
}

func newPromptsServer(t *testing.T, status int, body string, seen *seenRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			b, _ := io.ReadAll(r.Body)
			*seen = seenRequest{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: string(b)}
		}
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
}

func TestClientList(t *testing.T) {
	var seen seenRequest
	srv := newPromptsServer(t, http.StatusOK,
		`[{"prompt_id":0,"name":"core","content":"base"},{"prompt_id":4,"name":"tone","sequence":1,"status":"active"}]`, &seen)
	defer srv.Close()

	got, err := NewClient(srv.URL, time.Second).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if seen.method != http.MethodGet || seen.path != "/prompts" {
		t.Errorf("request = %s %s", seen.method, seen.path)
	}
	for _, h := range []string{"Content-Type", "Accept"} {
		if seen.header.Get(h) != "application/json" {
			t.Errorf("%s = %q, want application/json", h, seen.header.Get(h))
		}
	}
	if seen.header.Get("ngrok-skip-browser-warning") != "true" {
		t.Error("ngrok-skip-browser-warning header missing")
	}
	if len(got) != 2 || got[1].ID != 4 || !got[1].Active() || !got[0].IsCore() {
		t.Errorf("got %+v", got)
	}
}

func TestClientCreate(t *testing.T) {
	var seen seenRequest
	srv := newPromptsServer(t, http.StatusCreated, `{"prompt_id":9,"name":"tone","sequence":3,"status":"active"}`, &seen)
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	p, err := c.Create(context.Background(), NewPrompt{Name: "tone", Sequence: 3, Status: StatusActive})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p == nil || p.ID != 9 {
		t.Errorf("created = %+v", p)
	}
	var body NewPrompt
	if err := json.Unmarshal([]byte(seen.body), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if seen.method != http.MethodPost || body.Name != "tone" || body.Sequence != 3 {
		t.Errorf("request = %s %+v", seen.method, body)
	}

	if _, err := c.Create(context.Background(), NewPrompt{Name: "  "}); !errors.Is(err, ErrNameRequired) {
		t.Errorf("blank name: err = %v, want ErrNameRequired", err)
	}
}

func TestClientUpdate(t *testing.T) {
	t.Run("sends_only_set_fields", func(t *testing.T) {
		var seen seenRequest
		srv := newPromptsServer(t, http.StatusOK, `{"message":"Success"}`, &seen)
		defer srv.Close()

		p, err := NewClient(srv.URL, time.Second).Update(context.Background(), 4, Patch{Status: ptr(StatusInactive)})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if p != nil {
			t.Errorf("non-record body should give nil prompt, got %+v", p)
		}
		if seen.method != http.MethodPatch || seen.path != "/prompts/4" {
			t.Errorf("request = %s %s", seen.method, seen.path)
		}
		if seen.body != `{"status":"inactive"}` {
			t.Errorf("body = %s", seen.body)
		}
	})

	t.Run("core_allowed", func(t *testing.T) {
		var seen seenRequest
		srv := newPromptsServer(t, http.StatusNoContent, "", &seen)
		defer srv.Close()

		if _, err := NewClient(srv.URL, time.Second).Update(context.Background(), CoreID, Patch{Content: ptr("x")}); err != nil {
			t.Fatalf("Update core: %v", err)
		}
		if seen.path != "/prompts/0" {
			t.Errorf("path = %s", seen.path)
		}
	})

	t.Run("empty_patch_rejected", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", time.Second)
		if _, err := c.Update(context.Background(), 1, Patch{}); !errors.Is(err, ErrEmptyPatch) {
			t.Errorf("err = %v, want ErrEmptyPatch", err)
		}
	})
}

func TestClientDelete(t *testing.T) {
	var seen seenRequest
	srv := newPromptsServer(t, http.StatusNoContent, "", &seen)
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	if err := c.Delete(context.Background(), 6); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if seen.method != http.MethodDelete || seen.path != "/prompts/6" {
		t.Errorf("request = %s %s", seen.method, seen.path)
	}
	if err := c.Delete(context.Background(), CoreID); !errors.Is(err, ErrCoreDelete) {
		t.Errorf("delete core: err = %v, want ErrCoreDelete", err)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", http.StatusNotFound, `{"detail":"Prompt not found"}`, "Prompt not found"},
		{"message", http.StatusBadRequest, `{"message":"bad sequence"}`, "bad sequence"},
		{"validation_list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"}]}`, "field required"},
		{"status_text", http.StatusInternalServerError, `oops`, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newPromptsServer(t, tt.status, tt.body, nil)
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).List(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.Detail != tt.want || apiErr.Status != tt.status {
				t.Errorf("got (%d, %q), want (%d, %q)", apiErr.Status, apiErr.Detail, tt.status, tt.want)
			}
		})
	}

	t.Run("network", func(t *testing.T) {
		srv := newPromptsServer(t, http.StatusOK, "[]", nil)
		url := srv.URL
		srv.Close()
		err := NewClient(url, time.Second).Health(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Network {
			t.Errorf("err = %v, want network *APIError", err)
		}
	})
}
