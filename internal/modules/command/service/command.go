package service

// Command: закрытый набор команд оператора. Новая команда = новый тип + ветка в Dispatch.
type Command interface {
	Name() string
	command()
}

type Settings struct{}

type Status struct{}

type Help struct{}

type Lookback struct{ Hours int }

type Interval struct{ Seconds int }

type Heartbeat struct{ Minutes int }

type ThresholdKind string

const (
	ThresholdEntry   ThresholdKind = "entry"
	ThresholdExit    ThresholdKind = "exit"
	ThresholdInvalid ThresholdKind = "invalid"
)

type Threshold struct {
	Kind  ThresholdKind
	Value float64
}

func (Settings) Name() string  { return "settings" }
func (Status) Name() string    { return "status" }
func (Help) Name() string      { return "help" }
func (Lookback) Name() string  { return "lookback" }
func (Interval) Name() string  { return "interval" }
func (Heartbeat) Name() string { return "heartbeat" }
func (Threshold) Name() string { return "threshold" }

func (Settings) command()  {}
func (Status) command()    {}
func (Help) command()      {}
func (Lookback) command()  {}
func (Interval) command()  {}
func (Heartbeat) command() {}
func (Threshold) command() {}
