package alpaca

import (
	"time"

	"StockRank/internal/domain/models"
)

type barJSON struct {
	T  time.Time `json:"t"`
	O  float64   `json:"o"`
	H  float64   `json:"h"`
	L  float64   `json:"l"`
	C  float64   `json:"c"`
	V  float64   `json:"v"`
	N  float64   `json:"n"`
	VW float64   `json:"vw"`
}

func (b barJSON) toBar(symbol string) models.Bar {
	return models.Bar{
		Symbol:     symbol,
		Timestamp:  b.T.UTC(),
		Open:       b.O,
		High:       b.H,
		Low:        b.L,
		Close:      b.C,
		Volume:     b.V,
		TradeCount: b.N,
		VWAP:       b.VW,
	}
}

type barsResponse struct {
	Bars          map[string][]barJSON `json:"bars"`
	NextPageToken *string              `json:"next_page_token"`
}

type accountJSON struct {
	ID            string `json:"id"`
	AccountNumber string `json:"account_number"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	Cash          string `json:"cash"`
	BuyingPower   string `json:"buying_power"`
}

type assetJSON struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Status   string `json:"status"`
	Tradable bool   `json:"tradable"`
}
