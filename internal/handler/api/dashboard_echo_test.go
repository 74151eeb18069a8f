package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/internal/service/alpaca"
	"StockRank/internal/service/calendar"
	"StockRank/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	err error
}

func (s stubSource) FetchBars(_ context.Context, tickers []string, from, _ time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	if tickers[0] == "EMPTY" {
		return nil, nil
	}
	step := time.Minute
	if tf == domrepo.TF1Day {
		step = 24 * time.Hour
	}
	// 2024-03-05 09:29 New York, so the first point is pre-market.
	start := time.Date(2024, 3, 5, 14, 29, 0, 0, time.UTC)
	if from.After(start) {
		start = from
	}
	var out []models.Bar
	for i := 0; i < 3; i++ {
		out = append(out, models.Bar{Symbol: tickers[0], Timestamp: start.Add(time.Duration(i) * step), Close: 100 + float64(i)})
	}
	return out, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(src domrepo.BarSource, initial ...string) (*echo.Echo, *usecase.Portfolio) {
	series := usecase.NewSeriesUseCase(src, calendar.NewSession("xnys"), nil)
	portfolio := usecase.NewPortfolio(src, initial, nil)
	e := echo.New()
	NewDashboardEchoHandler(nil, series, portfolio).RegisterRoutes(e)
	return e, portfolio
}

func do(t *testing.T, e *echo.Echo, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestSeries_Segments(t *testing.T) {
	e, _ := newTestServer(stubSource{})
	rec, env := do(t, e, http.MethodGet, "/api/series?ticker=aapl&start=2024-03-05&end=2024-03-05")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=15", rec.Header().Get(echo.HeaderCacheControl))

	var s models.Series
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, "AAPL", s.Ticker)
	assert.Equal(t, "1Min", s.Timeframe)
	assert.Equal(t, 3, s.Count)
	require.Len(t, s.Segments, 2)
	assert.False(t, s.Segments[0].Trading)
	assert.True(t, s.Segments[1].Trading)
	assert.Len(t, s.Segments[1].Points, 2)
}

func TestSeries_Validation(t *testing.T) {
	e, _ := newTestServer(stubSource{})

	rec, env := do(t, e, http.MethodGet, "/api/series?start=2024-03-05&end=2024-03-05")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_REQUIRED")

	rec, _ = do(t, e, http.MethodGet, "/api/series?ticker=AAPL&start=2024-03-05&end=2024-03-05&timeframe=2Min")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/series?ticker=AAPL&start=03/05/2024&end=2024-03-05")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeries_ErrorMapping(t *testing.T) {
	e, _ := newTestServer(stubSource{})
	rec, _ := do(t, e, http.MethodGet, "/api/series?ticker=EMPTY&start=2024-03-05&end=2024-03-05")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e, _ = newTestServer(stubSource{err: fmt.Errorf("alpaca bars: %w", alpaca.ErrUnauthorized)})
	rec, _ = do(t, e, http.MethodGet, "/api/series?ticker=AAPL&start=2024-03-05&end=2024-03-05")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	e, _ = newTestServer(stubSource{err: fmt.Errorf("boom")})
	rec, _ = do(t, e, http.MethodGet, "/api/series?ticker=AAPL&start=2024-03-05&end=2024-03-05")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDimensions(t *testing.T) {
	e, _ := newTestServer(stubSource{})

	rec, env := do(t, e, http.MethodGet, "/api/dimensions?input_size=67")
	require.Equal(t, http.StatusOK, rec.Code)
	var d models.ModelDimensions
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, models.ModelDimensions{InputSize: 67, NumHeads: 1, HiddenDim: 134, NumLayers: 4, OutputSize: 1}, d)

	_, env = do(t, e, http.MethodGet, "/api/dimensions?input_size=67&fallback_heads=2")
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, models.ModelDimensions{InputSize: 68, NumHeads: 2, HiddenDim: 136, Padding: 1, NumLayers: 4, OutputSize: 1}, d)

	_, env = do(t, e, http.MethodGet, "/api/dimensions?input_size=128&num_layers=2")
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, 64, d.NumHeads)
	assert.Equal(t, 256, d.HiddenDim)
	assert.Equal(t, 2, d.NumLayers)

	rec, _ = do(t, e, http.MethodGet, "/api/dimensions?input_size=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolio_Lifecycle(t *testing.T) {
	e, p := newTestServer(stubSource{}, "MSFT")

	rec, _ := do(t, e, http.MethodPost, "/api/portfolio/aapl")
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/api/portfolio/AAPL")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AAPL", "MSFT"}, p.List())

	rec, env := do(t, e, http.MethodGet, "/api/portfolio")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []string `json:"rows"`
		Total int64    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []string{"AAPL", "MSFT"}, list.Rows)
	assert.Equal(t, int64(2), list.Total)

	rec, env = do(t, e, http.MethodGet, "/api/portfolio/bars?start=2024-03-05&end=2024-03-07")
	require.Equal(t, http.StatusOK, rec.Code)
	var bars map[string][]models.Bar
	require.NoError(t, json.Unmarshal(env.Data, &bars))
	assert.Len(t, bars["AAPL"], 3)
	assert.Len(t, bars["MSFT"], 3)

	rec, _ = do(t, e, http.MethodDelete, "/api/portfolio/msft")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, e, http.MethodDelete, "/api/portfolio/msft")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/portfolio/WAYTOOLONGSYMBOL")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"AAPL"}, p.List())
}
