package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"StockRank/internal/domain/models"
	"StockRank/internal/domain/repository"
	"StockRank/internal/service/ratelimit"
	xhttp "StockRank/pkg/http"
	"StockRank/pkg/logger"
)

const (
	PaperTradingURL = "https://paper-api.alpaca.markets"
	LiveTradingURL  = "https://api.alpaca.markets"
	DefaultDataURL  = "https://data.alpaca.markets"

	defaultPageLimit = 10000
	defaultRate      = 200
	limiterKey       = "alpaca"
)

var (
	ErrUnauthorized = errors.New("alpaca: credentials rejected")
	ErrRateLimited  = errors.New("alpaca: rate limited")
)

type Config struct {
	APIKey        string
	APISecret     string
	Paper         bool
	DataURL       string
	TradingURL    string // overrides the paper/live choice when set
	Feed          string
	Adjustment    string
	PageLimit     int
	RatePerMinute int
	Timeout       time.Duration
}

var (
	_ repository.BarSource = (*Client)(nil)
	_ repository.Broker    = (*Client)(nil)
)

// Client talks to the Alpaca market data and trading REST APIs.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	logger  *logger.Logger
	metrics repository.Metrics
}

func NewClient(cfg Config, limiter *ratelimit.Limiter, metrics repository.Metrics, log *logger.Logger, opts ...xhttp.ClientOption) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("alpaca api key and secret are required")
	}
	if cfg.DataURL == "" {
		cfg.DataURL = DefaultDataURL
	}
	if cfg.TradingURL == "" {
		cfg.TradingURL = LiveTradingURL
		if cfg.Paper {
			cfg.TradingURL = PaperTradingURL
		}
	}
	cfg.DataURL = strings.TrimRight(cfg.DataURL, "/")
	cfg.TradingURL = strings.TrimRight(cfg.TradingURL, "/")
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRate
	}
	if cfg.Timeout > 0 {
		opts = append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}, opts...)
	}
	if limiter == nil {
		limiter = ratelimit.New()
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(opts...),
		limiter: limiter,
		logger:  log,
		metrics: metrics,
	}, nil
}

// TradingURL is the resolved trading endpoint.
func (c *Client) TradingURL() string { return c.cfg.TradingURL }

func (c *Client) headers() map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     c.cfg.APIKey,
		"APCA-API-SECRET-KEY": c.cfg.APISecret,
	}
}

func (c *Client) get(ctx context.Context, url string, query map[string][]string, dest interface{}) error {
	capacity, refill := ratelimit.PerMinute(c.cfg.RatePerMinute)
	if err := c.limiter.Wait(ctx, limiterKey, capacity, refill); err != nil {
		return err
	}
	return classify(c.http.GetJSON(ctx, url, query, c.headers(), dest))
}

func classify(err error) error {
	var se *xhttp.StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch se.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, se.Body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, se.Body)
	}
	return err
}

// FetchBars pages through /v2/stocks/bars. Bars come back grouped in the order the
// tickers were requested, each ticker ascending in time.
func (c *Client) FetchBars(ctx context.Context, tickers []string, start, end time.Time, tf repository.Timeframe) ([]models.Bar, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers requested")
	}
	tf, err := repository.ParseTimeframe(string(tf))
	if err != nil {
		return nil, err
	}

	query := map[string][]string{
		"symbols":   {strings.Join(tickers, ",")},
		"timeframe": {tf.String()},
		"start":     {start.UTC().Format(time.RFC3339)},
		"end":       {end.UTC().Format(time.RFC3339)},
		"limit":     {strconv.Itoa(c.cfg.PageLimit)},
	}
	if c.cfg.Adjustment != "" {
		query["adjustment"] = []string{c.cfg.Adjustment}
	}
	if c.cfg.Feed != "" {
		query["feed"] = []string{c.cfg.Feed}
	}

	began := time.Now()
	bySymbol := make(map[string][]models.Bar, len(tickers))
	pages := 0
	for {
		var resp barsResponse
		if err := c.get(ctx, c.cfg.DataURL+"/v2/stocks/bars", query, &resp); err != nil {
			c.metrics.RecordError("alpaca_bars")
			return nil, fmt.Errorf("fetch bars page %d: %w", pages+1, err)
		}
		pages++
		for sym, rows := range resp.Bars {
			for _, r := range rows {
				bySymbol[sym] = append(bySymbol[sym], r.toBar(sym))
			}
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		query["page_token"] = []string{*resp.NextPageToken}
	}

	out := make([]models.Bar, 0)
	for _, t := range tickers {
		rows := bySymbol[t]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
		out = append(out, rows...)
	}

	c.metrics.RecordBarsFetched("alpaca", len(out))
	c.metrics.RecordFetchLatency("alpaca", time.Since(began).Seconds())
	c.logger.Debug("fetched bars",
		logger.Int("tickers", len(tickers)),
		logger.Int("bars", len(out)),
		logger.Int("pages", pages),
		logger.String("timeframe", tf.String()),
	)
	return out, nil
}

func (c *Client) Account(ctx context.Context) (*models.Account, error) {
	var a accountJSON
	if err := c.get(ctx, c.cfg.TradingURL+"/v2/account", nil, &a); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &models.Account{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		Status:        a.Status,
		Currency:      a.Currency,
		Cash:          a.Cash,
		BuyingPower:   a.BuyingPower,
	}, nil
}

// ActiveAssets lists active US equities.
func (c *Client) ActiveAssets(ctx context.Context) ([]models.Asset, error) {
	var rows []assetJSON
	query := map[string][]string{"status": {"active"}, "asset_class": {"us_equity"}}
	if err := c.get(ctx, c.cfg.TradingURL+"/v2/assets", query, &rows); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	out := make([]models.Asset, len(rows))
	for i, r := range rows {
		out[i] = models.Asset{Symbol: r.Symbol, Name: r.Name, Exchange: r.Exchange, Status: r.Status, Tradable: r.Tradable}
	}
	return out, nil
}

// FilterTradable keeps the tickers the broker lists as active and tradable.
func FilterTradable(tickers []string, assets []models.Asset) (kept, dropped []string) {
	ok := make(map[string]bool, len(assets))
	for _, a := range assets {
		if a.Tradable && a.Status == "active" {
			ok[a.Symbol] = true
		}
	}
	for _, t := range tickers {
		if ok[t] {
			kept = append(kept, t)
		} else {
			dropped = append(dropped, t)
		}
	}
	return kept, dropped
}
