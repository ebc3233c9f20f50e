package service

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"divergence_bot/internal/models"
)

// ParamsSource: всё, что нужно читателям: согласованный снимок.
type ParamsSource interface {
	Get() models.Params
}

// Field: настраиваемое поле Params.
type Field int

const (
	FieldLookbackHours Field = iota + 1
	FieldScanInterval
	FieldHeartbeat
	FieldEntryThreshold
	FieldExitThreshold
	FieldInvalidationThreshold
)

func (f Field) String() string {
	switch f {
	case FieldLookbackHours:
		return "lookback_hours"
	case FieldScanInterval:
		return "scan_interval_seconds"
	case FieldHeartbeat:
		return "heartbeat_minutes"
	case FieldEntryThreshold:
		return "entry_threshold_pct"
	case FieldExitThreshold:
		return "exit_threshold_pct"
	case FieldInvalidationThreshold:
		return "invalidation_threshold_pct"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Of читает значение поля из снимка.
func (f Field) Of(p models.Params) float64 {
	switch f {
	case FieldLookbackHours:
		return float64(p.LookbackHours)
	case FieldScanInterval:
		return float64(p.ScanIntervalSeconds)
	case FieldHeartbeat:
		return float64(p.HeartbeatMinutes)
	case FieldEntryThreshold:
		return p.EntryThresholdPct
	case FieldExitThreshold:
		return p.ExitThresholdPct
	case FieldInvalidationThreshold:
		return p.InvalidationThresholdPct
	default:
		return math.NaN()
	}
}

// Mutation: изменение ровно одного поля.
type Mutation struct {
	Field Field
	Value float64
}

// ParamStore: single-writer/multi-reader хранилище Params.
// Каждая запись публикует новую копию целиком, читатель видит либо старую, либо новую.
type ParamStore struct {
	mu  sync.Mutex // сериализует писателей
	cur atomic.Pointer[models.Params]
}

func NewParamStore(initial models.Params) (*ParamStore, error) {
	if err := Validate(initial); err != nil {
		return nil, err
	}
	s := &ParamStore{}
	p := initial
	s.cur.Store(&p)
	return s, nil
}

func (s *ParamStore) Get() models.Params {
	return *s.cur.Load()
}

func (s *ParamStore) Apply(m Mutation) (models.Params, error) {
	_, next, err := s.Update(m)
	return next, err
}

// Update как Apply, но отдаёт и предыдущий снимок (для журнала).
func (s *ParamStore) Update(m Mutation) (prev, next models.Params, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = *s.cur.Load()
	next = prev
	if err = set(&next, m); err != nil {
		return prev, prev, err
	}
	if err = Validate(next); err != nil {
		// нарушение порядка приписываем полю, которое пытались менять
		var ie *InconsistencyError
		if errors.As(err, &ie) {
			ie.Field = m.Field.String()
		}
		return prev, prev, err
	}
	s.cur.Store(&next)
	return prev, next, nil
}

func set(p *models.Params, m Mutation) error {
	v := m.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: m.Field.String(), Reason: "must be a finite number"}
	}
	switch m.Field {
	case FieldLookbackHours, FieldScanInterval, FieldHeartbeat:
		if v != math.Trunc(v) {
			return &ValidationError{Field: m.Field.String(), Reason: "must be a whole number"}
		}
	}

	switch m.Field {
	case FieldLookbackHours:
		p.LookbackHours = int(v)
	case FieldScanInterval:
		p.ScanIntervalSeconds = int(v)
	case FieldHeartbeat:
		p.HeartbeatMinutes = int(v)
	case FieldEntryThreshold:
		p.EntryThresholdPct = v
	case FieldExitThreshold:
		p.ExitThresholdPct = v
	case FieldInvalidationThreshold:
		p.InvalidationThresholdPct = v
	default:
		return &ValidationError{Field: m.Field.String(), Reason: "unknown field"}
	}
	return nil
}

// Validate проверяет диапазоны и порядок порогов exit < entry < invalidation.
func Validate(p models.Params) error {
	switch {
	case p.LookbackHours < 1 || p.LookbackHours > 24:
		return &ValidationError{Field: FieldLookbackHours.String(), Reason: "must be between 1 and 24 hours"}
	case p.ScanIntervalSeconds < 60 || p.ScanIntervalSeconds > 3600:
		return &ValidationError{Field: FieldScanInterval.String(), Reason: "must be between 60 and 3600 seconds"}
	case p.HeartbeatMinutes < 0:
		return &ValidationError{Field: FieldHeartbeat.String(), Reason: "must be >= 0 (0 disables heartbeat)"}
	}

	for _, f := range []Field{FieldEntryThreshold, FieldExitThreshold, FieldInvalidationThreshold} {
		if v := f.Of(p); math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: f.String(), Reason: "must be a finite number"}
		}
	}
	if p.EntryThresholdPct <= 0 {
		return &ValidationError{Field: FieldEntryThreshold.String(), Reason: "must be > 0"}
	}
	if p.ExitThresholdPct < 0 {
		return &ValidationError{Field: FieldExitThreshold.String(), Reason: "must be >= 0"}
	}
	if p.ExitThresholdPct >= p.EntryThresholdPct {
		return &InconsistencyError{
			Field:  FieldExitThreshold.String(),
			Reason: fmt.Sprintf("exit %.2f must stay below entry %.2f", p.ExitThresholdPct, p.EntryThresholdPct),
		}
	}
	if p.InvalidationThresholdPct <= p.EntryThresholdPct {
		return &InconsistencyError{
			Field:  FieldInvalidationThreshold.String(),
			Reason: fmt.Sprintf("invalidation %.2f must stay above entry %.2f", p.InvalidationThresholdPct, p.EntryThresholdPct),
		}
	}
	return nil
}
