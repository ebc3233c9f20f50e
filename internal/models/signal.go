package models

// SignalState: состояние автомата. Один экземпляр на процесс.
type SignalState int

const (
	StateFlat SignalState = iota
	StateS1Active
	StateS2Active
)

func (s SignalState) String() string {
	switch s {
	case StateFlat:
		return "FLAT"
	case StateS1Active:
		return "S1_ACTIVE"
	case StateS2Active:
		return "S2_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Strategy: направление позиции.
type Strategy string

const (
	StrategyNone Strategy = ""
	StrategyS1   Strategy = "S1" // Long BTC / Short ETH: ETH вырос сильнее
	StrategyS2   Strategy = "S2" // Long ETH / Short BTC: ETH упал сильнее
)

// Strategy возвращает активную стратегию для состояния.
func (s SignalState) Strategy() Strategy {
	switch s {
	case StateS1Active:
		return StrategyS1
	case StateS2Active:
		return StrategyS2
	default:
		return StrategyNone
	}
}

type EventKind string

const (
	EventS1Entry      EventKind = "S1_ENTRY"
	EventS2Entry      EventKind = "S2_ENTRY"
	EventExit         EventKind = "EXIT"
	EventInvalidation EventKind = "INVALIDATION"
)

// SignalEvent: то, что уходит нотифайеру.
type SignalEvent struct {
	ID       string      `json:"id"`
	Kind     EventKind   `json:"kind"`
	Strategy Strategy    `json:"strategy"` // для EXIT/INVALIDATION: закрытая стратегия
	From     SignalState `json:"from"`
	To       SignalState `json:"to"`
	Reading  GapReading  `json:"reading"`
}
