package di

import (
	"os"
	"path/filepath"
	"testing"

	"StockRank/internal/domain/repository"
	internalrepo "StockRank/internal/repository"
	"StockRank/internal/service/alpaca"
	"StockRank/internal/services/features"
	"StockRank/pkg/cache"
	"StockRank/pkg/config"
	applogger "StockRank/pkg/logger"
	"StockRank/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

const baseConfig = `
alpaca:
  api_key: key
  api_secret: secret
`

func TestProvidePipelineConfig_Defaults(t *testing.T) {
	cfg := loadConfig(t, baseConfig)

	pc, err := ProvidePipelineConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, util.DefaultTickers, pc.Tickers)
	assert.Equal(t, repository.TF1Day, pc.Timeframe)
	assert.Equal(t, features.DuplicateKeepLast, pc.DuplicatePolicy)
	assert.Equal(t, 5, pc.WindowSize)
	assert.Equal(t, 4, pc.NumLayers)
	assert.Equal(t, int64(42), pc.Train.Seed)
	assert.Empty(t, pc.DumpDir)
}

func TestProvidePipelineConfig_TickersFileAndDump(t *testing.T) {
	dir := t.TempDir()
	tickersPath := filepath.Join(dir, "tickers.txt")
	require.NoError(t, os.WriteFile(tickersPath, []byte("# tech\nnvda\nmsft, aapl\n"), 0o644))

	cfg := loadConfig(t, baseConfig+`
pipeline:
  tickers: [TSLA]
  tickers_file: `+tickersPath+`
export:
  dir: `+dir+`
  dump_bars: true
`)
	pc, err := ProvidePipelineConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"TSLA", "NVDA", "MSFT", "AAPL"}, pc.Tickers)
	assert.Equal(t, filepath.Join(dir, "bars"), pc.DumpDir)
}

func TestProvidePipelineConfig_BadTimeframe(t *testing.T) {
	cfg := loadConfig(t, baseConfig+`
pipeline:
  timeframe: 2Weeks
`)
	_, err := ProvidePipelineConfig(cfg)
	assert.Error(t, err)
}

func TestProvideBarSource(t *testing.T) {
	cfg := loadConfig(t, baseConfig)
	client, err := alpaca.NewClient(alpaca.Config{APIKey: "k", APISecret: "s"}, nil, nil, nil)
	require.NoError(t, err)

	src, err := ProvideBarSource(cfg, client, nil, nil, nil, applogger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &alpaca.Client{}, src)

	src, err = ProvideBarSource(cfg, client, nil, cache.NewMemoryCache(), nil, applogger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &internalrepo.CachedBarSource{}, src)

	cfg.Source.Type = "clickhouse"
	_, err = ProvideBarSource(cfg, client, nil, nil, nil, applogger.Nop())
	assert.Error(t, err, "clickhouse source without a store")
}

func TestOptionalProvidersAreNilWhenDisabled(t *testing.T) {
	cfg := loadConfig(t, baseConfig)

	ch, cleanup, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, ch)

	store, err := ProvideBarStore(nil, nil, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, store)

	pub, cleanup, err := ProvideRankingPublisher(cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, pub)

	assert.Nil(t, ProvideBroker(nil))
	assert.Nil(t, ProvideAccount(nil))
}
