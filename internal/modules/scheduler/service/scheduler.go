package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"divergence_bot/internal/format"
	"divergence_bot/internal/metrics"
	"divergence_bot/internal/models"
	divergence "divergence_bot/internal/modules/divergence/service"
	health "divergence_bot/internal/modules/health/service"
	price "divergence_bot/internal/modules/price/service"
	"divergence_bot/internal/notify"
	"divergence_bot/pkg/logger"
	"divergence_bot/pkg/tracing"

	"golang.org/x/sync/errgroup"
)

// StatusSource: снимок для heartbeat.
type StatusSource interface {
	Status() models.Status
}

type Config struct {
	FetchTimeout  time.Duration
	SendTimeout   time.Duration
	HeartbeatPoll time.Duration
}

// Scheduler крутит два цикла: тики (fetch -> окно -> gap -> автомат -> алерт) и heartbeat.
type Scheduler struct {
	cfg      Config
	params   divergence.ParamsSource
	prices   price.Client
	window   *divergence.Window
	calc     *divergence.GapCalculator
	machine  *divergence.Machine
	notifier notify.Notifier
	status   StatusSource
	health   *health.State
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(
	cfg Config,
	params divergence.ParamsSource,
	prices price.Client,
	window *divergence.Window,
	calc *divergence.GapCalculator,
	machine *divergence.Machine,
	notifier notify.Notifier,
	status StatusSource,
	state *health.State,
) *Scheduler {
	if cfg.HeartbeatPoll <= 0 {
		cfg.HeartbeatPoll = 15 * time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		params:   params,
		prices:   prices,
		window:   window,
		calc:     calc,
		machine:  machine,
		notifier: notifier,
		status:   status,
		health:   state,
		now:      time.Now,
		after:    time.After,
	}
}

// Start запускает оба цикла. Первый тик: сразу.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	started := s.now()
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runTicks(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.runHeartbeat(ctx, started)
	}()
	logger.Info("scheduler: started, interval=%s", s.params.Get().ScanInterval())
}

// Stop не прерывает тик в полёте: ждёт его завершения или ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("scheduler: stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

func (s *Scheduler) tickBudget() time.Duration {
	return s.cfg.FetchTimeout + s.cfg.SendTimeout + 5*time.Second
}

func (s *Scheduler) runTicks(ctx context.Context) {
	for {
		// отмена ctx не обрывает начатый тик
		tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tickBudget())
		if _, err := s.Tick(tickCtx); err != nil {
			logger.Warn("scheduler: tick unavailable: %v", err)
		}
		cancel()

		// интервал перечитывается на каждом цикле
		select {
		case <-ctx.Done():
			return
		case <-s.after(s.params.Get().ScanInterval()):
		}
	}
}

// Tick: один цикл. Ошибка означает недоступный тик: автомат не двигался.
func (s *Scheduler) Tick(ctx context.Context) (ev *models.SignalEvent, err error) {
	span, ctx := tracing.StartSpan(ctx, "scheduler.tick")
	defer func() { tracing.Finish(span, err) }()

	now := s.now()
	p := s.params.Get()
	defer func() {
		outcome := "evaluated"
		if err != nil {
			outcome = "unavailable"
		}
		metrics.TicksTotal.WithLabelValues(outcome).Inc()
		if s.health != nil {
			s.health.TouchTick(now)
			s.health.SetReady(true)
		}
	}()

	if err = s.collect(ctx, now); err != nil {
		return nil, err
	}

	reading, err := s.calc.Calculate(now)
	if err != nil {
		return nil, err
	}
	metrics.GapPct.Set(reading.GapPct)

	ev = s.machine.Evaluate(&reading)
	state := s.machine.State()
	metrics.SignalState.Set(float64(state))
	logger.Info("tick: state=%s btc=%s%% eth=%s%% gap=%s%%",
		state, format.Pct(reading.BTCChangePct), format.Pct(reading.ETHChangePct), format.Pct(reading.GapPct))
	if ev == nil {
		return nil, nil
	}

	metrics.SignalsTotal.WithLabelValues(string(ev.Kind)).Inc()
	logger.Info("signal %s: %s %s -> %s gap=%.2f%% id=%s", ev.Kind, ev.Strategy, ev.From, ev.To, ev.Reading.GapPct, ev.ID)
	notify.Deliver(ctx, s.notifier, format.Event(*ev, p), s.cfg.SendTimeout)
	return ev, nil
}

// collect тянет обе цены параллельно и пишет удачные сэмплы в окно.
// Ошибка любой ноги делает тик недоступным, но удачная нога всё равно попадает в окно.
func (s *Scheduler) collect(ctx context.Context, now time.Time) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	prices := make([]float64, len(models.Assets))
	var g errgroup.Group
	for i, asset := range models.Assets {
		g.Go(func() error {
			v, err := s.prices.Fetch(fetchCtx, asset)
			if err != nil {
				metrics.FetchFailuresTotal.WithLabelValues(string(asset), price.Reason(err)).Inc()
				return fmt.Errorf("%w: fetch %s: %v", divergence.ErrDataUnavailable, asset, err)
			}
			prices[i] = v
			return nil
		})
	}
	fetchErr := g.Wait()

	for i, asset := range models.Assets {
		if prices[i] == 0 {
			continue
		}
		if err := s.window.Record(asset, models.Sample{Time: now, Price: prices[i]}); err != nil {
			return fmt.Errorf("%w: record %s: %v", divergence.ErrDataUnavailable, asset, err)
		}
	}
	return fetchErr
}

// runHeartbeat опрашивает heartbeat_minutes раз в HeartbeatPoll, так что изменение вступает в силу без перезапуска.
func (s *Scheduler) runHeartbeat(ctx context.Context, last time.Time) {
	ticker := time.NewTicker(s.cfg.HeartbeatPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		every := s.params.Get().Heartbeat()
		if every <= 0 {
			continue
		}
		now := s.now()
		if now.Sub(last) < every {
			continue
		}
		last = now
		s.Heartbeat(ctx)
	}
}

// Heartbeat шлёт сводку состояния.
func (s *Scheduler) Heartbeat(ctx context.Context) {
	notify.Deliver(ctx, s.notifier, format.Heartbeat(s.status.Status()), s.cfg.SendTimeout)
}
