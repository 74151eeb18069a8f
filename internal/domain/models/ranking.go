package models

import "time"

// RankingRow is one line of the batch ranking table.
type RankingRow struct {
	Day            int     `json:"day" parquet:"day"`
	Ticker         string  `json:"ticker" parquet:"ticker"`
	PredictedValue float64 `json:"predicted_value" parquet:"predicted_value"`
	Rank           int     `json:"rank" parquet:"rank"`
}

// TickerScore pairs a ticker with a softmax score.
type TickerScore struct {
	Ticker string  `json:"ticker"`
	Score  float64 `json:"score"`
}

// Prediction is the inference output for one window.
type Prediction struct {
	Timestamp time.Time     `json:"timestamp"`
	Values    []float64     `json:"values"`
	Top       []TickerScore `json:"top"`
}

// FailedTicker records why a ticker was skipped in a batch run.
type FailedTicker struct {
	Ticker    string `json:"ticker"`
	DateRange string `json:"date_range"`
	Reason    string `json:"reason"`
}

// RunReport summarizes a batch run.
type RunReport struct {
	Success []string       `json:"success"`
	Failed  []FailedTicker `json:"failed"`
}

// RegressionFit holds the fitted parameters for one ticker and window length.
type RegressionFit struct {
	Ticker       string      `json:"ticker"`
	Window       int         `json:"window"`
	Samples      int         `json:"samples"`
	Coefficients [][]float64 `json:"coefficients"`
	Intercept    []float64   `json:"intercept"`
}
