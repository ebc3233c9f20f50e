package models

import "time"

// Asset: тикер одной ноги пары.
type Asset string

const (
	AssetBTC Asset = "BTC" // опорный актив
	AssetETH Asset = "ETH" // сравниваемый актив
)

// Assets: фиксированный порядок ног: сначала опорная.
var Assets = []Asset{AssetBTC, AssetETH}

// Sample: цена актива в момент времени. После записи не меняется.
type Sample struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// GapReading: результат одного тика: изменения ног за окно и их разница.
type GapReading struct {
	BTCChangePct float64   `json:"btc_change_pct"`
	ETHChangePct float64   `json:"eth_change_pct"`
	GapPct       float64   `json:"gap_pct"` // ETH - BTC
	Time         time.Time `json:"time"`
}
