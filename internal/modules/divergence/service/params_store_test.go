package service

import (
	"errors"
	"math"
	"sync"
	"testing"

	"divergence_bot/internal/models"
)

func newStore(t *testing.T) *ParamStore {
	t.Helper()
	s, err := NewParamStore(testParams())
	if err != nil {
		t.Fatalf("NewParamStore: %v", err)
	}
	return s
}

func TestParamStore_RejectsInvalidInitial(t *testing.T) {
	p := testParams()
	p.ExitThresholdPct = 3
	if _, err := NewParamStore(p); err == nil {
		t.Fatalf("exit >= entry must be rejected at startup")
	}
}

func TestParamStore_Apply(t *testing.T) {
	cases := []struct {
		name    string
		m       Mutation
		wantErr any
	}{
		{"lookback ok", Mutation{FieldLookbackHours, 4}, nil},
		{"lookback low", Mutation{FieldLookbackHours, 0}, &ValidationError{}},
		{"lookback high", Mutation{FieldLookbackHours, 25}, &ValidationError{}},
		{"lookback fractional", Mutation{FieldLookbackHours, 1.5}, &ValidationError{}},
		{"interval ok", Mutation{FieldScanInterval, 60}, nil},
		{"interval low", Mutation{FieldScanInterval, 59}, &ValidationError{}},
		{"interval high", Mutation{FieldScanInterval, 3601}, &ValidationError{}},
		{"heartbeat off", Mutation{FieldHeartbeat, 0}, nil},
		{"heartbeat negative", Mutation{FieldHeartbeat, -1}, &ValidationError{}},
		{"entry zero", Mutation{FieldEntryThreshold, 0}, &ValidationError{}},
		{"entry below exit", Mutation{FieldEntryThreshold, 0.4}, &InconsistencyError{}},
		{"entry above invalidation", Mutation{FieldEntryThreshold, 4.0}, &InconsistencyError{}},
		{"exit negative", Mutation{FieldExitThreshold, -0.1}, &ValidationError{}},
		{"exit zero", Mutation{FieldExitThreshold, 0}, nil},
		{"exit equal entry", Mutation{FieldExitThreshold, 2.0}, &InconsistencyError{}},
		{"invalidation equal entry", Mutation{FieldInvalidationThreshold, 2.0}, &InconsistencyError{}},
		{"invalidation ok", Mutation{FieldInvalidationThreshold, 6}, nil},
		{"nan", Mutation{FieldEntryThreshold, math.NaN()}, &ValidationError{}},
		{"inf", Mutation{FieldInvalidationThreshold, math.Inf(1)}, &ValidationError{}},
		{"unknown field", Mutation{Field(99), 1}, &ValidationError{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			before := s.Get()
			got, err := s.Apply(tc.m)

			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tc.m.Field.Of(got) != tc.m.Value || tc.m.Field.Of(s.Get()) != tc.m.Value {
					t.Fatalf("value not committed: %+v", s.Get())
				}
				return
			}

			switch tc.wantErr.(type) {
			case *ValidationError:
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("err=%v (%T), want ValidationError", err, err)
				}
			case *InconsistencyError:
				var ie *InconsistencyError
				if !errors.As(err, &ie) {
					t.Fatalf("err=%v (%T), want InconsistencyError", err, err)
				}
				if ie.Field != tc.m.Field.String() {
					t.Fatalf("field=%s, want %s", ie.Field, tc.m.Field)
				}
			}
			if s.Get() != before {
				t.Fatalf("store mutated on error: %+v", s.Get())
			}
		})
	}
}

func TestParamStore_EntryThenExitScenario(t *testing.T) {
	s := newStore(t)

	if _, err := s.Apply(Mutation{FieldEntryThreshold, 1.5}); err != nil {
		t.Fatalf("entry 1.5 with exit 0.5 must succeed: %v", err)
	}
	if _, err := s.Apply(Mutation{FieldExitThreshold, 2.0}); err == nil {
		t.Fatalf("exit 2.0 with entry 1.5 must be rejected")
	}
	p := s.Get()
	if p.EntryThresholdPct != 1.5 || p.ExitThresholdPct != 0.5 {
		t.Fatalf("unexpected params after scenario: %+v", p)
	}
}

func TestParamStore_UpdateReturnsPrevious(t *testing.T) {
	s := newStore(t)
	prev, next, err := s.Update(Mutation{FieldLookbackHours, 6})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if prev.LookbackHours != 1 || next.LookbackHours != 6 {
		t.Fatalf("prev=%d next=%d", prev.LookbackHours, next.LookbackHours)
	}
}

// Читатель никогда не должен увидеть полупримененную конфигурацию.
func TestParamStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := newStore(t)
	a := testParams()
	b := testParams()
	b.EntryThresholdPct, b.ExitThresholdPct, b.InvalidationThresholdPct = 3, 1, 5

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			target := a
			if i%2 == 0 {
				target = b
			}
			// порядок важен, чтобы каждый шаг оставался валидным
			if target.EntryThresholdPct > s.Get().EntryThresholdPct {
				_, _ = s.Apply(Mutation{FieldInvalidationThreshold, target.InvalidationThresholdPct})
				_, _ = s.Apply(Mutation{FieldEntryThreshold, target.EntryThresholdPct})
				_, _ = s.Apply(Mutation{FieldExitThreshold, target.ExitThresholdPct})
			} else {
				_, _ = s.Apply(Mutation{FieldExitThreshold, target.ExitThresholdPct})
				_, _ = s.Apply(Mutation{FieldEntryThreshold, target.EntryThresholdPct})
				_, _ = s.Apply(Mutation{FieldInvalidationThreshold, target.InvalidationThresholdPct})
			}
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
			if err := Validate(s.Get()); err != nil {
				t.Fatalf("reader observed inconsistent params: %v", err)
			}
		}
	}
}

func TestFieldOfUnknownIsNaN(t *testing.T) {
	if !math.IsNaN(Field(0).Of(models.DefaultParams())) {
		t.Fatalf("unknown field must read NaN")
	}
}
