package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockRank/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		APIKey:        "key",
		APISecret:     "secret",
		DataURL:       srv.URL,
		TradingURL:    srv.URL,
		RatePerMinute: 6000,
	}, nil, nil, nil)
	require.NoError(t, err)
	return c
}

func TestFetchBars_PagesAndOrders(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v2/stocks/bars", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		q := r.URL.Query()
		assert.Equal(t, "MSFT,AAPL", q.Get("symbols"))
		assert.Equal(t, "1Day", q.Get("timeframe"))
		assert.Equal(t, "2022-10-01T00:00:00Z", q.Get("start"))
		assert.Equal(t, "2022-10-05T23:59:59Z", q.Get("end"))

		switch q.Get("page_token") {
		case "":
			w.Write([]byte(`{"bars":{"AAPL":[{"t":"2022-10-04T04:00:00Z","o":140,"h":146,"l":139,"c":145,"v":1000,"n":10,"vw":143}],
				"MSFT":[{"t":"2022-10-03T04:00:00Z","o":235,"h":241,"l":234,"c":240,"v":2000,"n":20,"vw":238}]},
				"next_page_token":"p2"}`))
		case "p2":
			w.Write([]byte(`{"bars":{"AAPL":[{"t":"2022-10-03T04:00:00Z","o":138,"h":143,"l":137,"c":142,"v":900,"n":9,"vw":141}]},
				"next_page_token":null}`))
		default:
			t.Errorf("unexpected token %q", q.Get("page_token"))
		}
	})

	start := time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 10, 5, 23, 59, 59, 0, time.UTC)
	bars, err := c.FetchBars(context.Background(), []string{"MSFT", "AAPL"}, start, end, repository.TF1Day)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, bars, 3)

	assert.Equal(t, "MSFT", bars[0].Symbol)
	assert.Equal(t, "AAPL", bars[1].Symbol)
	assert.Equal(t, 138.0, bars[1].Open, "ticker rows are time ascending across pages")
	assert.Equal(t, 140.0, bars[2].Open)
	assert.Equal(t, 10.0, bars[2].TradeCount)
	assert.Equal(t, 143.0, bars[2].VWAP)
}

func TestFetchBars_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"forbidden"}`))
	})
	_, err := c.FetchBars(context.Background(), []string{"AAPL"}, time.Now().Add(-time.Hour), time.Now(), repository.TF1Min)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFetchBars_Validation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.FetchBars(context.Background(), nil, time.Now(), time.Now(), repository.TF1Day)
	assert.Error(t, err)
	_, err = c.FetchBars(context.Background(), []string{"AAPL"}, time.Now(), time.Now(), "2Weeks")
	assert.Error(t, err)
}

func TestAccountAndAssets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/account":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": "abc", "account_number": "PA1", "status": "ACTIVE",
				"currency": "USD", "cash": "1000.5", "buying_power": "2001",
			})
		case "/v2/assets":
			assert.Equal(t, "active", r.URL.Query().Get("status"))
			w.Write([]byte(`[{"symbol":"AAPL","status":"active","tradable":true},{"symbol":"XLNX","status":"active","tradable":false}]`))
		default:
			http.NotFound(w, r)
		}
	})

	acct, err := c.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PA1", acct.AccountNumber)
	assert.Equal(t, "1000.5", acct.Cash)

	assets, err := c.ActiveAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 2)

	kept, dropped := FilterTradable([]string{"AAPL", "XLNX", "GONE"}, assets)
	assert.Equal(t, []string{"AAPL"}, kept)
	assert.Equal(t, []string{"XLNX", "GONE"}, dropped)
}

func TestNewClient_Endpoints(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil, nil)
	assert.Error(t, err)

	paper, err := NewClient(Config{APIKey: "k", APISecret: "s", Paper: true}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, PaperTradingURL, paper.TradingURL())

	live, err := NewClient(Config{APIKey: "k", APISecret: "s"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, LiveTradingURL, live.TradingURL())
}
