package models

import "time"

// SeriesPoint is one dashboard sample.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	IsTrading bool      `json:"is_trading"`
}

// Segment is a contiguous run of points sharing the same trading flag.
type Segment struct {
	Trading bool          `json:"trading"`
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Points  []SeriesPoint `json:"points"`
}

// Series is the dashboard payload for one ticker.
type Series struct {
	Ticker    string    `json:"ticker"`
	Timeframe string    `json:"timeframe"`
	Count     int       `json:"count"`
	Segments  []Segment `json:"segments"`
}

// Account is the subset of brokerage account fields the CLI reports.
type Account struct {
	ID            string `json:"id"`
	AccountNumber string `json:"account_number"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	Cash          string `json:"cash"`
	BuyingPower   string `json:"buying_power"`
}

// Asset is a tradable instrument listed by the broker.
type Asset struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Status   string `json:"status"`
	Tradable bool   `json:"tradable"`
}
