package service

import (
	"context"
	"fmt"
	"time"

	"divergence_bot/internal/format"
	"divergence_bot/internal/metrics"
	"divergence_bot/internal/models"
	divergence "divergence_bot/internal/modules/divergence/service"
	"divergence_bot/pkg/logger"
	"divergence_bot/pkg/tracing"

	"github.com/pkg/errors"
)

// Journal пишет принятые изменения параметров. Ошибка журнала не откатывает изменение.
type Journal interface {
	Record(ctx context.Context, c models.ConfigChange) error
}

// journalTimeout: запись в журнал не должна держать цикл команд.
const journalTimeout = 5 * time.Second

type Dispatcher struct {
	store   *divergence.ParamStore
	window  *divergence.Window
	machine *divergence.Machine
	journal Journal
	now     func() time.Time

	journalTimeout time.Duration
}

func NewDispatcher(
	store *divergence.ParamStore,
	window *divergence.Window,
	machine *divergence.Machine,
	journal Journal,
) *Dispatcher {
	return &Dispatcher{
		store:   store,
		window:  window,
		machine: machine,
		journal: journal,
		now:     time.Now,

		journalTimeout: journalTimeout,
	}
}

// Handle: вход для транспорта: разбор и исполнение. Всегда возвращает текст ответа.
func (d *Dispatcher) Handle(ctx context.Context, source, name string, args []string) string {
	cmd, err := Parse(name, args)
	if err != nil {
		var ae *ArgError
		if errors.As(err, &ae) {
			metrics.CommandsTotal.WithLabelValues(ae.Command, "bad_args").Inc()
			return format.BadArgs(ae.Reason, ae.Usage)
		}
		metrics.CommandsTotal.WithLabelValues("unknown", "unknown").Inc()
		logger.Debug("command: %v from %s", err, source)
		return format.UnknownCommand(Normalize(name))
	}

	reply, err := d.Dispatch(ctx, source, cmd)
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Name(), result).Inc()
	return reply
}

// Dispatch исполняет разобранную команду. err != nil => изменение отклонено, reply объясняет почему.
func (d *Dispatcher) Dispatch(ctx context.Context, source string, cmd Command) (reply string, err error) {
	span, ctx := tracing.StartSpan(ctx, "command."+cmd.Name())
	defer func() { tracing.Finish(span, err) }()

	switch c := cmd.(type) {
	case Settings:
		return format.Settings(d.store.Get()), nil
	case Status:
		return format.Status(d.Status()), nil
	case Help:
		return format.Help(), nil
	case Lookback:
		return d.apply(ctx, source, divergence.Mutation{Field: divergence.FieldLookbackHours, Value: float64(c.Hours)})
	case Interval:
		return d.apply(ctx, source, divergence.Mutation{Field: divergence.FieldScanInterval, Value: float64(c.Seconds)})
	case Heartbeat:
		return d.apply(ctx, source, divergence.Mutation{Field: divergence.FieldHeartbeat, Value: float64(c.Minutes)})
	case Threshold:
		field, ok := thresholdFields[c.Kind]
		if !ok {
			return "", fmt.Errorf("unknown threshold kind %q", c.Kind)
		}
		return d.apply(ctx, source, divergence.Mutation{Field: field, Value: c.Value})
	default:
		return "", fmt.Errorf("unhandled command %T", cmd)
	}
}

var thresholdFields = map[ThresholdKind]divergence.Field{
	ThresholdEntry:   divergence.FieldEntryThreshold,
	ThresholdExit:    divergence.FieldExitThreshold,
	ThresholdInvalid: divergence.FieldInvalidationThreshold,
}

func (d *Dispatcher) apply(ctx context.Context, source string, m divergence.Mutation) (string, error) {
	prev, next, err := d.store.Update(m)
	if err != nil {
		logger.Warn("config: %s rejected from %s: %v", m.Field, source, err)
		return format.Rejected(err), err
	}

	change := models.ConfigChange{
		ChangedAt: d.now().UTC(),
		Field:     m.Field.String(),
		OldValue:  m.Field.Of(prev),
		NewValue:  m.Field.Of(next),
		Source:    source,
	}
	logger.Info("config: %s %v -> %v (%s)", change.Field, change.OldValue, change.NewValue, source)

	if d.journal != nil {
		jctx, cancel := context.WithTimeout(ctx, d.journalTimeout)
		defer cancel()
		if jerr := d.journal.Record(jctx, change); jerr != nil {
			logger.Error("config: journal write failed: %v", jerr)
		}
	}
	return format.Updated(change.Field, change.OldValue, change.NewValue), nil
}

// Status: снимок для /status, heartbeat и HTTP. Params читаются один раз.
func (d *Dispatcher) Status() models.Status {
	now := d.now()
	p := d.store.Get()
	st := models.Status{
		Config: p,
		State:  d.machine.State().String(),
		Warmup: models.Warmup{
			BTC: d.window.WarmupFor(models.AssetBTC, now, p.Lookback()),
			ETH: d.window.WarmupFor(models.AssetETH, now, p.Lookback()),
		},
	}
	if r, ok := d.machine.LastReading(); ok {
		st.LastReading = &r
	}
	return st
}
