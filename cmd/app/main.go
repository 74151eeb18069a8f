package main

import (
	"context"
	"flag"
	"log"
	"os"

	"StockRank/internal/di"
	"StockRank/pkg/config"
	applogger "StockRank/pkg/logger"
	"StockRank/pkg/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", server.ModeRank, "train|predict|regress|rank|serve|account")
	ticker := flag.String("ticker", "", "ticker or comma-separated tickers (default: configured universe)")
	start := flag.String("start", "", "start date YYYY-MM-DD (default: pipeline.start_date)")
	end := flag.String("end", "", "end date YYYY-MM-DD (default: pipeline.end_date)")
	all := flag.Bool("all", false, "with -mode train, train one model per ticker")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	err = app.Run(context.Background(), server.RunOptions{
		Mode:   *mode,
		Ticker: *ticker,
		Start:  *start,
		End:    *end,
		All:    *all,
	})
	if err != nil {
		app.Logger().Error("run failed", applogger.String("mode", *mode), applogger.Error(err))
		cleanup()
		os.Exit(1)
	}
}
