package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"StockRank/internal/domain/repository"
	"StockRank/internal/handler/api"
	internalrepo "StockRank/internal/repository"
	"StockRank/internal/service/alpaca"
	"StockRank/internal/service/calendar"
	"StockRank/internal/service/ratelimit"
	"StockRank/internal/services/features"
	"StockRank/internal/services/model"
	"StockRank/internal/usecase"
	"StockRank/pkg/cache"
	pkgch "StockRank/pkg/clickhouse"
	"StockRank/pkg/config"
	xhttp "StockRank/pkg/http"
	pkgkafka "StockRank/pkg/kafka"
	applogger "StockRank/pkg/logger"
	"StockRank/pkg/metrics"
	"StockRank/pkg/server"
	"StockRank/pkg/util"
)

// ProvideLogger builds the application logger from the logger section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideAlpacaClient returns nil when the bars come from ClickHouse and no keys are set.
func ProvideAlpacaClient(cfg *config.Config, limiter *ratelimit.Limiter, m repository.Metrics, l *applogger.Logger) (*alpaca.Client, error) {
	if cfg.Source.Type != "alpaca" && (cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "") {
		return nil, nil
	}
	client, err := alpaca.NewClient(alpaca.Config{
		APIKey:        cfg.Alpaca.APIKey,
		APISecret:     cfg.Alpaca.APISecret,
		Paper:         cfg.Alpaca.Paper,
		DataURL:       cfg.Alpaca.DataURL,
		Feed:          cfg.Alpaca.Feed,
		Adjustment:    cfg.Alpaca.Adjustment,
		PageLimit:     cfg.Alpaca.PageLimit,
		RatePerMinute: cfg.Alpaca.RatePerMinute,
		Timeout:       cfg.Alpaca.Timeout,
	}, limiter, m, l.With(applogger.String("component", "alpaca")))
	if err != nil {
		return nil, fmt.Errorf("alpaca client: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient connects when clickhouse.enabled is set, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideBarStore creates the bars table on first use. Nil without a ClickHouse client.
func ProvideBarStore(ch *pkgch.Client, m repository.Metrics, l *applogger.Logger) (repository.BarStore, error) {
	if ch == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := internalrepo.NewCHBarStore(ctx, ch, m, l.With(applogger.String("component", "bar_store")))
	if err != nil {
		return nil, fmt.Errorf("bar store: %w", err)
	}
	return store, nil
}

// ProvideCache builds the fetched-bar cache: memory only, or memory in front of Redis.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}
	memOpts := []cache.MemoryOption{
		cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
		cache.WithMemoryTTL(cfg.Cache.TTL),
	}
	if !cfg.Cache.Redis.Enabled {
		c := cache.NewMemoryCache(memOpts...)
		return c, func() { _ = c.Close() }, nil
	}

	redisOpts := []cache.RedisOption{
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
	}
	if cfg.Cache.Redis.Prefix != "" {
		redisOpts = append(redisOpts, cache.WithRedisPrefix(cfg.Cache.Redis.Prefix))
	}
	rc, err := cache.NewRedisCache(redisOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	c := cache.NewLayeredCache(rc, memOpts...)
	return c, func() { _ = c.Close() }, nil
}

// ProvideBarSource picks the upstream by source.type, then layers archiving and caching on top.
func ProvideBarSource(
	cfg *config.Config,
	client *alpaca.Client,
	store repository.BarStore,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) (repository.BarSource, error) {
	var src repository.BarSource
	switch cfg.Source.Type {
	case "clickhouse":
		if store == nil {
			return nil, fmt.Errorf("bar source: clickhouse store is not configured")
		}
		src = store
	default:
		if client == nil {
			return nil, fmt.Errorf("bar source: alpaca client is not configured")
		}
		src = client
		if cfg.Source.Archive && store != nil {
			src = internalrepo.NewArchivingBarSource(src, store, l)
		}
	}
	if c != nil {
		src = internalrepo.NewCachedBarSource(src, c, cfg.Cache.TTL, m, l)
	}
	return src, nil
}

// ProvideBroker exposes the alpaca client as the broker. Nil when there is no client.
func ProvideBroker(client *alpaca.Client) repository.Broker {
	if client == nil {
		return nil
	}
	return client
}

// ProvidePipelineConfig resolves the ticker universe and the typed pipeline settings.
func ProvidePipelineConfig(cfg *config.Config) (usecase.PipelineConfig, error) {
	tickers := append([]string(nil), cfg.Pipeline.Tickers...)
	if cfg.Pipeline.TickersFile != "" {
		fromFile, err := util.LoadTickersFile(cfg.Pipeline.TickersFile)
		if err != nil {
			return usecase.PipelineConfig{}, fmt.Errorf("tickers file: %w", err)
		}
		tickers = append(tickers, fromFile...)
	}
	if len(tickers) == 0 {
		tickers = util.DefaultTickers
	}

	tf, err := repository.ParseTimeframe(cfg.Pipeline.Timeframe)
	if err != nil {
		return usecase.PipelineConfig{}, fmt.Errorf("pipeline.timeframe: %w", err)
	}
	policy, err := features.ParseDuplicatePolicy(cfg.Pipeline.DuplicatePolicy)
	if err != nil {
		return usecase.PipelineConfig{}, fmt.Errorf("pipeline.duplicate_policy: %w", err)
	}

	pc := usecase.PipelineConfig{
		Tickers:         util.NormalizeTickers(tickers),
		Timeframe:       tf,
		WindowSize:      cfg.Pipeline.WindowSize,
		PredDays:        cfg.Pipeline.PredDays,
		FallbackHeads:   cfg.Pipeline.FallbackHeads,
		NumLayers:       cfg.Model.NumLayers,
		DuplicatePolicy: policy,
		TradableOnly:    cfg.Pipeline.TradableOnly,
		ModelDir:        cfg.Model.Dir,
		TopK:            cfg.Model.TopK,
		Train: model.TrainConfig{
			LearningRate: cfg.Model.LearningRate,
			BatchSize:    cfg.Model.BatchSize,
			Epochs:       cfg.Model.Epochs,
			Seed:         cfg.Model.Seed,
		},
	}
	if cfg.Export.DumpBars && cfg.Export.Dir != "" {
		pc.DumpDir = filepath.Join(cfg.Export.Dir, "bars")
	}
	return pc, nil
}

func ProvidePipeline(source repository.BarSource, broker repository.Broker, pc usecase.PipelineConfig, m repository.Metrics, l *applogger.Logger) *usecase.Pipeline {
	return usecase.NewPipeline(source, broker, pc, m, l.With(applogger.String("component", "pipeline")))
}

func ProvideRankingWriter(cfg *config.Config) (repository.RankingWriter, error) {
	w, err := internalrepo.NewRankingWriter(cfg.Export.Format)
	if err != nil {
		return nil, fmt.Errorf("ranking writer: %w", err)
	}
	return w, nil
}

// ProvideRankingPublisher creates the Kafka publisher when kafka.enabled is set.
func ProvideRankingPublisher(cfg *config.Config) (repository.RankingPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaRankingPublisher(producer, cfg.Kafka.Topic)
	return pub, func() { _ = pub.Close() }, nil
}

func ProvideRanker(
	cfg *config.Config,
	p *usecase.Pipeline,
	w repository.RankingWriter,
	pub repository.RankingPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Ranker {
	return usecase.NewRanker(p, w, pub, cfg.Export.Dir, m, l.With(applogger.String("component", "ranker")))
}

func ProvideRegression(cfg *config.Config, p *usecase.Pipeline, m repository.Metrics, l *applogger.Logger) *usecase.RegressionUseCase {
	return usecase.NewRegressionUseCase(p, cfg.Pipeline.RegressionWindows, m, l.With(applogger.String("component", "regression")))
}

func ProvideSession(cfg *config.Config) *calendar.Session {
	return calendar.NewSession(cfg.Pipeline.Exchange)
}

func ProvideSeries(source repository.BarSource, session *calendar.Session, l *applogger.Logger) *usecase.SeriesUseCase {
	return usecase.NewSeriesUseCase(source, session, l)
}

// ProvidePortfolio seeds the dashboard portfolio with the configured universe.
func ProvidePortfolio(source repository.BarSource, pc usecase.PipelineConfig, l *applogger.Logger) *usecase.Portfolio {
	return usecase.NewPortfolio(source, pc.Tickers, l)
}

func ProvideAccount(broker repository.Broker) *usecase.AccountUseCase {
	if broker == nil {
		return nil
	}
	return usecase.NewAccountUseCase(broker)
}

func ProvideDashboardHandler(l *applogger.Logger, series *usecase.SeriesUseCase, portfolio *usecase.Portfolio) *api.DashboardEchoHandler {
	return api.NewDashboardEchoHandler(l, series, portfolio)
}

func ProvideHTTPServer(cfg *config.Config, h *api.DashboardEchoHandler, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(h, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
	)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	ranker *usecase.Ranker,
	regression *usecase.RegressionUseCase,
	account *usecase.AccountUseCase,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, pipeline, ranker, regression, account, httpServer)
}
