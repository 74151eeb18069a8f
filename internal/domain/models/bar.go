package models

import "time"

// FeaturesPerTicker is the width of one ticker block inside a DayVector.
const FeaturesPerTicker = 7

// Bar represents one OHLCV record for a ticker at a timestamp.
type Bar struct {
	Symbol     string    `json:"symbol" parquet:"symbol"`
	Timestamp  time.Time `json:"t" parquet:"t,timestamp"`
	Open       float64   `json:"o" parquet:"o"`
	High       float64   `json:"h" parquet:"h"`
	Low        float64   `json:"l" parquet:"l"`
	Close      float64   `json:"c" parquet:"c"`
	Volume     float64   `json:"v" parquet:"v"`
	TradeCount float64   `json:"n" parquet:"n"`
	VWAP       float64   `json:"vw" parquet:"vw"`
}

// Features returns the bar's feature tuple in DayVector order:
// open, high, low, close, volume, trade_count, vwap.
func (b Bar) Features() [FeaturesPerTicker]float64 {
	return [FeaturesPerTicker]float64{b.Open, b.High, b.Low, b.Close, b.Volume, b.TradeCount, b.VWAP}
}

// DayVector is the concatenation of every ticker's feature block for one timestamp.
type DayVector struct {
	Timestamp time.Time
	Values    []float64
}

// Len returns the vector width.
func (v DayVector) Len() int { return len(v.Values) }
