package models

// Requests for dashboard HTTP endpoints.

type SeriesRequest struct {
	Ticker    string `query:"ticker" json:"ticker" validate:"required,max=10"`
	Start     string `query:"start" json:"start" validate:"required"`
	End       string `query:"end" json:"end" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1Min" validate:"oneof=1Min 5Min 15Min 1Hour 1Day"`
}

type DimensionsRequest struct {
	InputSize     int `query:"input_size" json:"input_size" validate:"required,gte=1,lte=100000"`
	FallbackHeads int `query:"fallback_heads" json:"fallback_heads" default:"1" validate:"gte=1,lte=64"`
	NumLayers     int `query:"num_layers" json:"num_layers" default:"4" validate:"gte=1,lte=16"`
}

type PortfolioTickerRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=10"`
}

type PortfolioBarsRequest struct {
	Start     string `query:"start" json:"start" validate:"required"`
	End       string `query:"end" json:"end" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1Day" validate:"oneof=1Min 5Min 15Min 1Hour 1Day"`
}
