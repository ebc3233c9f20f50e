package models

// Warmup: доля окна, покрытая сэмплами (0..1).
type Warmup struct {
	BTC float64 `json:"btc"`
	ETH float64 `json:"eth"`
}

// Status: согласованный снимок для /status и heartbeat.
type Status struct {
	Config      Params      `json:"config"`
	State       string      `json:"state"`
	Warmup      Warmup      `json:"warmup"`
	LastReading *GapReading `json:"last_reading,omitempty"`
}
