package health

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"divergence_bot/internal/models"
	"divergence_bot/internal/modules/health/service"

	"github.com/bytedance/sonic"
)

type stubStatus struct{}

func (stubStatus) Status() models.Status {
	return models.Status{Config: models.DefaultParams(), State: "S2_ACTIVE", Warmup: models.Warmup{BTC: 1, ETH: 1}}
}

type stubChanges struct {
	out   []models.ConfigChange
	err   error
	limit int
}

func (s *stubChanges) Recent(_ context.Context, limit int) ([]models.ConfigChange, error) {
	s.limit = limit
	return s.out, s.err
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, string(body)
}

func TestReadyzFollowsState(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state, stubStatus{}, &stubChanges{})

	if code, _ := get(t, mux, "/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("before first tick: %d", code)
	}
	state.SetReady(true)
	if code, body := get(t, mux, "/readyz"); code != http.StatusOK || body != "ready" {
		t.Fatalf("after first tick: %d %q", code, body)
	}
	if code, _ := get(t, mux, "/livez"); code != http.StatusOK {
		t.Fatalf("livez: %d", code)
	}
}

func TestHealthz(t *testing.T) {
	state := service.NewState()
	state.TouchTick(time.Unix(1_700_000_000, 0))
	mux := NewMux(state, stubStatus{}, &stubChanges{})

	_, body := get(t, mux, "/healthz")
	var resp map[string]any
	if err := sonic.UnmarshalString(body, &resp); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if resp["lastTickUnix"] != float64(1_700_000_000) {
		t.Fatalf("lastTickUnix: %v", resp["lastTickUnix"])
	}
	if _, ok := resp["wsConnected"]; ok {
		t.Fatalf("wsConnected must be absent without a stream probe")
	}

	state.SetStreamProbe(func() bool { return true })
	_, body = get(t, mux, "/healthz")
	if !strings.Contains(body, `"wsConnected":true`) {
		t.Fatalf("healthz: %s", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux := NewMux(service.NewState(), stubStatus{}, &stubChanges{})

	code, body := get(t, mux, "/status")
	if code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	var st models.Status
	if err := sonic.UnmarshalString(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != "S2_ACTIVE" || st.Config.EntryThresholdPct != 2 || st.LastReading != nil {
		t.Fatalf("status: %+v", st)
	}
}

func TestConfigChangesEndpoint(t *testing.T) {
	changes := &stubChanges{}
	mux := NewMux(service.NewState(), stubStatus{}, changes)

	code, body := get(t, mux, "/config/changes?limit=5")
	if code != http.StatusOK || body != "[]" || changes.limit != 5 {
		t.Fatalf("empty journal: %d %q limit=%d", code, body, changes.limit)
	}

	changes.out = []models.ConfigChange{{Field: "lookback_hours", OldValue: 1, NewValue: 4, Source: "telegram:1"}}
	if _, body = get(t, mux, "/config/changes"); !strings.Contains(body, `"field":"lookback_hours"`) {
		t.Fatalf("changes: %s", body)
	}

	changes.err = errors.New("db down")
	if code, _ = get(t, mux, "/config/changes"); code != http.StatusInternalServerError {
		t.Fatalf("journal error: %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := NewMux(service.NewState(), stubStatus{}, &stubChanges{})
	code, body := get(t, mux, "/metrics")
	if code != http.StatusOK || !strings.Contains(body, "divergence_gap_pct") {
		t.Fatalf("metrics: %d", code)
	}
}
