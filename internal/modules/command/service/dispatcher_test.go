package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"divergence_bot/internal/metrics"
	"divergence_bot/internal/models"
	divergence "divergence_bot/internal/modules/divergence/service"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memJournal struct {
	mu      sync.Mutex
	changes []models.ConfigChange
	err     error
}

func (j *memJournal) Record(_ context.Context, c models.ConfigChange) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.changes = append(j.changes, c)
	return nil
}

func newDispatcher(t *testing.T, j Journal) (*Dispatcher, *divergence.ParamStore, *divergence.Window, *divergence.Machine) {
	t.Helper()
	store, err := divergence.NewParamStore(models.DefaultParams())
	if err != nil {
		t.Fatalf("NewParamStore: %v", err)
	}
	window := divergence.NewWindow(store)
	machine := divergence.NewMachine(store)
	d := NewDispatcher(store, window, machine, j)
	d.now = func() time.Time { return t0 }
	return d, store, window, machine
}

func TestDispatcher_EntryThenExitThresholds(t *testing.T) {
	j := &memJournal{}
	d, store, _, _ := newDispatcher(t, j)
	ctx := context.Background()

	reply := d.Handle(ctx, "telegram:1", "/threshold", []string{"entry", "1.5"})
	if !strings.HasPrefix(reply, "✅") {
		t.Fatalf("entry 1.5 must be accepted, got %q", reply)
	}
	if p := store.Get(); p.EntryThresholdPct != 1.5 || p.ExitThresholdPct != 0.5 {
		t.Fatalf("params after entry change: %+v", p)
	}

	reply = d.Handle(ctx, "telegram:1", "/threshold", []string{"exit", "2.0"})
	if !strings.HasPrefix(reply, "❗️ Rejected") || !strings.Contains(reply, `exit\_threshold\_pct`) {
		t.Fatalf("exit 2.0 above entry 1.5 must be rejected, got %q", reply)
	}
	if p := store.Get(); p.ExitThresholdPct != 0.5 {
		t.Fatalf("rejected change leaked: %+v", p)
	}

	if len(j.changes) != 1 {
		t.Fatalf("journal must hold only the accepted change, got %+v", j.changes)
	}
	c := j.changes[0]
	if c.Field != "entry_threshold_pct" || c.OldValue != 2 || c.NewValue != 1.5 || c.Source != "telegram:1" || !c.ChangedAt.Equal(t0) {
		t.Fatalf("journal entry: %+v", c)
	}
}

func TestDispatcher_RejectionIsTyped(t *testing.T) {
	d, _, _, _ := newDispatcher(t, nil)

	_, err := d.Dispatch(context.Background(), "test", Lookback{Hours: 30})
	var ve *divergence.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}

	_, err = d.Dispatch(context.Background(), "test", Threshold{Kind: ThresholdInvalid, Value: 1})
	var ie *divergence.InconsistencyError
	if !errors.As(err, &ie) || ie.Field != "invalidation_threshold_pct" {
		t.Fatalf("want InconsistencyError on invalidation, got %v", err)
	}
}

func TestDispatcher_AllMutations(t *testing.T) {
	d, store, _, _ := newDispatcher(t, nil)
	ctx := context.Background()

	for _, cmd := range []Command{
		Lookback{Hours: 4},
		Interval{Seconds: 60},
		Heartbeat{Minutes: 0},
		Threshold{Kind: ThresholdInvalid, Value: 6},
	} {
		if _, err := d.Dispatch(ctx, "test", cmd); err != nil {
			t.Fatalf("%#v: %v", cmd, err)
		}
	}
	p := store.Get()
	if p.LookbackHours != 4 || p.ScanIntervalSeconds != 60 || p.HeartbeatMinutes != 0 || p.InvalidationThresholdPct != 6 {
		t.Fatalf("params: %+v", p)
	}
}

func TestDispatcher_JournalFailureKeepsChange(t *testing.T) {
	d, store, _, _ := newDispatcher(t, &memJournal{err: errors.New("db down")})

	reply := d.Handle(context.Background(), "test", "/lookback", []string{"2"})
	if !strings.HasPrefix(reply, "✅") || store.Get().LookbackHours != 2 {
		t.Fatalf("journal failure must not undo the change: %q %+v", reply, store.Get())
	}
}

type hungJournal struct{ done chan error }

func (j *hungJournal) Record(ctx context.Context, _ models.ConfigChange) error {
	<-ctx.Done()
	j.done <- ctx.Err()
	return ctx.Err()
}

func TestDispatcher_HungJournalDoesNotBlock(t *testing.T) {
	j := &hungJournal{done: make(chan error, 1)}
	d, store, _, _ := newDispatcher(t, j)
	d.journalTimeout = 20 * time.Millisecond

	replied := make(chan string, 1)
	go func() { replied <- d.Handle(context.WithoutCancel(context.Background()), "test", "/lookback", []string{"3"}) }()

	select {
	case reply := <-replied:
		if !strings.HasPrefix(reply, "✅") || store.Get().LookbackHours != 3 {
			t.Fatalf("change must be applied despite the journal: %q %+v", reply, store.Get())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Handle blocked on a hung journal write")
	}
	if err := <-j.done; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("journal ctx must hit its deadline, got %v", err)
	}
}

// oddMarkup: есть ли неэкранированные _ или * без пары вне code span.
func oddMarkup(s string) bool {
	var underscores, stars int
	escaped, inCode := false, false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && !inCode:
			escaped = true
		case r == '`':
			inCode = !inCode
		case inCode:
		case r == '_':
			underscores++
		case r == '*':
			stars++
		}
	}
	return inCode || underscores%2 != 0 || stars%2 != 0
}

func TestDispatcher_RepliesAreValidMarkdown(t *testing.T) {
	d, _, _, _ := newDispatcher(t, nil)
	ctx := context.Background()

	for _, c := range []struct {
		name string
		args []string
	}{
		{"/lookback", []string{"25"}},
		{"/heartbeat", []string{"-1"}},
		{"/lookback", []string{"x_y"}},
		{"/threshold", []string{"exit", "9"}},
		{"/threshold", []string{"entry_", "1"}},
		{"/interval", []string{"2*3"}},
		{"/foo_bar", nil},
	} {
		reply := d.Handle(ctx, "test", c.name, c.args)
		if !strings.HasPrefix(reply, "❗️") && !strings.HasPrefix(reply, "❔") {
			t.Fatalf("%s %v: want an error reply, got %q", c.name, c.args, reply)
		}
		if oddMarkup(reply) {
			t.Fatalf("%s %v: reply breaks Markdown: %q", c.name, c.args, reply)
		}
	}
}

func TestDispatcher_UnknownAndBadArgs(t *testing.T) {
	d, _, _, _ := newDispatcher(t, nil)
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues("unknown", "unknown"))
	reply := d.Handle(ctx, "test", "/moon", nil)
	if !strings.Contains(reply, "/moon") || !strings.Contains(reply, "/help") {
		t.Fatalf("unknown command reply: %q", reply)
	}
	if got := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues("unknown", "unknown")); got != before+1 {
		t.Fatalf("unknown counter %v -> %v", before, got)
	}

	reply = d.Handle(ctx, "test", "/lookback", []string{"soon"})
	if !strings.Contains(reply, "Usage: `/lookback <hours>`") {
		t.Fatalf("bad args reply: %q", reply)
	}
}

func TestDispatcher_ReadOnlyCommands(t *testing.T) {
	d, _, _, _ := newDispatcher(t, nil)
	ctx := context.Background()

	if r := d.Handle(ctx, "test", "/settings", nil); !strings.Contains(r, "Entry: `±2.00%`") {
		t.Fatalf("settings reply: %q", r)
	}
	if r := d.Handle(ctx, "test", "/help", nil); !strings.Contains(r, "/threshold") {
		t.Fatalf("help reply: %q", r)
	}
	if r := d.Handle(ctx, "test", "/status", nil); !strings.Contains(r, "FLAT") {
		t.Fatalf("status reply: %q", r)
	}
}

func TestDispatcher_Status(t *testing.T) {
	d, _, window, machine := newDispatcher(t, nil)

	st := d.Status()
	if st.State != "FLAT" || st.Warmup.BTC != 0 || st.LastReading != nil {
		t.Fatalf("initial status: %+v", st)
	}

	// BTC покрыт на весь lookback, ETH на половину
	for _, s := range []struct {
		asset models.Asset
		min   int
		price float64
	}{
		{models.AssetBTC, -60, 100},
		{models.AssetBTC, 0, 101},
		{models.AssetETH, -30, 100},
		{models.AssetETH, 0, 104},
	} {
		if err := window.Record(s.asset, models.Sample{Time: t0.Add(time.Duration(s.min) * time.Minute), Price: s.price}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	machine.Evaluate(&models.GapReading{BTCChangePct: 1, ETHChangePct: 3.2, GapPct: 2.2, Time: t0})

	st = d.Status()
	if st.State != "S1_ACTIVE" {
		t.Fatalf("state: %s", st.State)
	}
	if st.Warmup.BTC != 1 || st.Warmup.ETH != 0.5 {
		t.Fatalf("warmup: %+v", st.Warmup)
	}
	if st.LastReading == nil || st.LastReading.GapPct != 2.2 {
		t.Fatalf("last reading: %+v", st.LastReading)
	}
	if st.Config != models.DefaultParams() {
		t.Fatalf("config: %+v", st.Config)
	}
}
