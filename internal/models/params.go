package models

import "time"

// Params: живые настройки движка. Меняются только через команды.
type Params struct {
	LookbackHours       int `json:"lookback_hours" yaml:"lookback_hours"`
	ScanIntervalSeconds int `json:"scan_interval_seconds" yaml:"scan_interval_seconds"`
	HeartbeatMinutes    int `json:"heartbeat_minutes" yaml:"heartbeat_minutes"` // 0 => выкл

	EntryThresholdPct        float64 `json:"entry_threshold_pct" yaml:"entry_threshold_pct"`
	ExitThresholdPct         float64 `json:"exit_threshold_pct" yaml:"exit_threshold_pct"`
	InvalidationThresholdPct float64 `json:"invalidation_threshold_pct" yaml:"invalidation_threshold_pct"`
}

func DefaultParams() Params {
	return Params{
		LookbackHours:            1,
		ScanIntervalSeconds:      300,
		HeartbeatMinutes:         60,
		EntryThresholdPct:        2.0,
		ExitThresholdPct:         0.5,
		InvalidationThresholdPct: 4.0,
	}
}

func (p Params) Lookback() time.Duration {
	return time.Duration(p.LookbackHours) * time.Hour
}

func (p Params) ScanInterval() time.Duration {
	return time.Duration(p.ScanIntervalSeconds) * time.Second
}

func (p Params) Heartbeat() time.Duration {
	return time.Duration(p.HeartbeatMinutes) * time.Minute
}
