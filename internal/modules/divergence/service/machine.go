package service

import (
	"math"
	"sync"

	"divergence_bot/internal/models"

	"github.com/google/uuid"
)

// Machine: автомат Flat -> S1/S2 -> Flat. Пороги читаются из ParamsSource на каждом шаге.
type Machine struct {
	params ParamsSource
	newID  func() string

	mu    sync.Mutex
	state models.SignalState
	last  *models.GapReading
}

func NewMachine(params ParamsSource) *Machine {
	return &Machine{
		params: params,
		newID:  uuid.NewString,
		state:  models.StateFlat,
	}
}

func (m *Machine) State() models.SignalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastReading: последний доступный тик, если был.
func (m *Machine) LastReading() (models.GapReading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return models.GapReading{}, false
	}
	return *m.last, true
}

// Evaluate продвигает автомат на один тик. nil reading (тик недоступен): no-op.
// Возвращает не больше одного события.
func (m *Machine) Evaluate(r *models.GapReading) *models.SignalEvent {
	if r == nil {
		return nil
	}
	p := m.params.Get()

	m.mu.Lock()
	defer m.mu.Unlock()

	reading := *r
	m.last = &reading

	from := m.state
	to, kind := next(from, reading.GapPct, p)
	if kind == "" {
		return nil
	}
	m.state = to

	strategy := to.Strategy()
	if to == models.StateFlat {
		strategy = from.Strategy()
	}
	return &models.SignalEvent{
		ID:       m.newID(),
		Kind:     kind,
		Strategy: strategy,
		From:     from,
		To:       to,
		Reading:  reading,
	}
}

func next(state models.SignalState, gap float64, p models.Params) (models.SignalState, models.EventKind) {
	switch state {
	case models.StateFlat:
		switch {
		case gap >= p.EntryThresholdPct:
			return models.StateS1Active, models.EventS1Entry
		case gap <= -p.EntryThresholdPct:
			return models.StateS2Active, models.EventS2Entry
		}
	case models.StateS1Active:
		// инвалидация важнее выхода
		switch {
		case math.Abs(gap) >= p.InvalidationThresholdPct:
			return models.StateFlat, models.EventInvalidation
		case gap <= p.ExitThresholdPct:
			return models.StateFlat, models.EventExit
		}
	case models.StateS2Active:
		switch {
		case math.Abs(gap) >= p.InvalidationThresholdPct:
			return models.StateFlat, models.EventInvalidation
		case gap >= -p.ExitThresholdPct:
			return models.StateFlat, models.EventExit
		}
	}
	return state, ""
}
