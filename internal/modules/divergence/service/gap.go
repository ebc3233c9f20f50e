package service

import (
	"fmt"
	"time"

	"divergence_bot/internal/models"
)

// Change: результат ChangePct одной ноги.
type Change struct {
	Pct float64
	Err error
}

// Gap собирает GapReading. Любая недоступная нога делает недоступным весь тик.
func Gap(now time.Time, btc, eth Change) (models.GapReading, error) {
	if btc.Err != nil {
		return models.GapReading{}, fmt.Errorf("btc leg: %w", btc.Err)
	}
	if eth.Err != nil {
		return models.GapReading{}, fmt.Errorf("eth leg: %w", eth.Err)
	}
	return models.GapReading{
		BTCChangePct: btc.Pct,
		ETHChangePct: eth.Pct,
		GapPct:       eth.Pct - btc.Pct,
		Time:         now,
	}, nil
}

type GapCalculator struct {
	window *Window
}

func NewGapCalculator(window *Window) *GapCalculator {
	return &GapCalculator{window: window}
}

func (c *GapCalculator) Calculate(now time.Time) (models.GapReading, error) {
	change := func(a models.Asset) Change {
		pct, err := c.window.ChangePct(a, now)
		return Change{Pct: pct, Err: err}
	}
	return Gap(now, change(models.AssetBTC), change(models.AssetETH))
}
