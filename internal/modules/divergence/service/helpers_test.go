package service

import (
	"time"

	"divergence_bot/internal/models"
)

type staticParams models.Params

func (s staticParams) Get() models.Params { return models.Params(s) }

func testParams() models.Params {
	return models.Params{
		LookbackHours:            1,
		ScanIntervalSeconds:      300,
		HeartbeatMinutes:         0,
		EntryThresholdPct:        2.0,
		ExitThresholdPct:         0.5,
		InvalidationThresholdPct: 4.0,
	}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }
