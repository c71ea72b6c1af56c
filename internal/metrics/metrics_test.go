package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/v1/generations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/generations/{id}", "404"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/generations/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/generations/{id}", "404"))

	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}

func TestInstrumentHandlerWithoutRouter(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unknown", "200"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unknown", "200")) - before; got != 1 {
		t.Errorf("counter delta = %v, want 1", got)
	}
}

func TestResult(t *testing.T) {
	if Result(nil) != "ok" || Result(errors.New("x")) != "error" {
		t.Error("Result labels wrong")
	}
}

type fakePublisher struct {
	connected bool
	published int64
}

func (f fakePublisher) IsConnected() bool { return f.connected }
func (f fakePublisher) Published() int64  { return f.published }

func TestCollector(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(nil, fakePublisher{connected: true, published: 7})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 5 {
		t.Errorf("GatherAndCount = %d, %v; want 5", n, err)
	}

	c := NewCollector(nil, nil)
	if got := testutil.CollectAndCount(c, "contentgen_mqtt_connected"); got != 1 {
		t.Errorf("mqtt_connected series = %d, want 1", got)
	}
}
