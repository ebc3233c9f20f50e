package service

import (
	"fmt"
	"math"
	"sync"
	"time"

	"divergence_bot/internal/models"
)

// Window: скользящее окно сэмплов по каждому активу.
// Хранит последний сэмпл не позже now-lookback (базу) и всё, что новее него.
type Window struct {
	params ParamsSource

	mu      sync.RWMutex
	samples map[models.Asset][]models.Sample
}

func NewWindow(params ParamsSource) *Window {
	return &Window{
		params:  params,
		samples: make(map[models.Asset][]models.Sample),
	}
}

// Record добавляет сэмпл и сразу подрезает окно относительно его времени.
// Дубликат по времени заменяет предыдущий, более старый сэмпл отклоняется.
func (w *Window) Record(asset models.Asset, s models.Sample) error {
	if s.Time.IsZero() || s.Price <= 0 || math.IsNaN(s.Price) || math.IsInf(s.Price, 0) {
		return fmt.Errorf("%w: %s price=%v time=%s", ErrInvalidSample, asset, s.Price, s.Time)
	}
	lookback := w.params.Get().Lookback()

	w.mu.Lock()
	defer w.mu.Unlock()

	buf := w.samples[asset]
	if n := len(buf); n > 0 {
		last := buf[n-1].Time
		switch {
		case s.Time.Equal(last):
			buf[n-1] = s
			w.samples[asset] = prune(buf, s.Time.Add(-lookback))
			return nil
		case s.Time.Before(last):
			return fmt.Errorf("%w: %s %s < %s", ErrOutOfOrder, asset, s.Time, last)
		}
	}

	w.samples[asset] = prune(append(buf, s), s.Time.Add(-lookback))
	return nil
}

// prune оставляет последний сэмпл с Time <= cutoff и всё после него.
func prune(buf []models.Sample, cutoff time.Time) []models.Sample {
	base := baselineIndex(buf, cutoff)
	if base <= 0 {
		return buf
	}
	out := make([]models.Sample, len(buf)-base)
	copy(out, buf[base:])
	return out
}

// baselineIndex: индекс последнего сэмпла не позже cutoff, -1 если такого нет.
func baselineIndex(buf []models.Sample, cutoff time.Time) int {
	idx := -1
	for i := range buf {
		if buf[i].Time.After(cutoff) {
			break
		}
		idx = i
	}
	return idx
}

// ChangePct: изменение цены в % от базы (now-lookback) до последнего сэмпла.
func (w *Window) ChangePct(asset models.Asset, now time.Time) (float64, error) {
	cutoff := now.Add(-w.params.Get().Lookback())

	w.mu.RLock()
	defer w.mu.RUnlock()

	buf := w.samples[asset]
	base := baselineIndex(buf, cutoff)
	if base < 0 || base == len(buf)-1 {
		return 0, fmt.Errorf("%w: %s has %d samples", ErrWarmingUp, asset, len(buf))
	}

	baseline, current := buf[base].Price, buf[len(buf)-1].Price
	if baseline <= 0 {
		return 0, fmt.Errorf("%w: %s baseline=%v", ErrBadBaseline, asset, baseline)
	}
	return (current - baseline) / baseline * 100, nil
}

// Warmup: доля окна, покрытая сэмплами, 0..1.
func (w *Window) Warmup(asset models.Asset, now time.Time) float64 {
	return w.WarmupFor(asset, now, w.params.Get().Lookback())
}

// WarmupFor: то же для заданного lookback, чтобы снимок статуса читал Params один раз.
func (w *Window) WarmupFor(asset models.Asset, now time.Time, lookback time.Duration) float64 {
	if lookback <= 0 {
		return 0
	}
	cutoff := now.Add(-lookback)

	w.mu.RLock()
	defer w.mu.RUnlock()

	buf := w.samples[asset]
	if len(buf) < 2 {
		return 0
	}
	if base := baselineIndex(buf, cutoff); base >= 0 && base < len(buf)-1 {
		return 1
	}
	span := buf[len(buf)-1].Time.Sub(buf[0].Time)
	return math.Min(1, math.Max(0, float64(span)/float64(lookback)))
}

// Snapshot: копия сэмплов актива, безопасна для чтения вне лока.
func (w *Window) Snapshot(asset models.Asset) []models.Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()

	buf := w.samples[asset]
	out := make([]models.Sample, len(buf))
	copy(out, buf)
	return out
}
