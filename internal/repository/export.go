package repository

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"

	"github.com/parquet-go/parquet-go"
)

// RankingHeader is the column order of exported ranking tables.
var RankingHeader = []string{"Day", "Ticker", "Predicted Value", "Rank"}

// NewRankingWriter picks a writer by format (csv, json, parquet).
func NewRankingWriter(format string) (domrepo.RankingWriter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv", "":
		return CSVRankingWriter{}, nil
	case "json":
		return JSONRankingWriter{}, nil
	case "parquet":
		return ParquetRankingWriter{}, nil
	}
	return nil, fmt.Errorf("unsupported export format %q (use csv, json, parquet)", format)
}

type CSVRankingWriter struct{}

func (CSVRankingWriter) Extension() string { return "csv" }

func (CSVRankingWriter) Save(rows []models.RankingRow, path string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(RankingHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			strconv.Itoa(r.Day),
			r.Ticker,
			floatStr(r.PredictedValue),
			strconv.Itoa(r.Rank),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

type JSONRankingWriter struct{}

func (JSONRankingWriter) Extension() string { return "json" }

func (JSONRankingWriter) Save(rows []models.RankingRow, path string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

type ParquetRankingWriter struct{}

func (ParquetRankingWriter) Extension() string { return "parquet" }

func (ParquetRankingWriter) Save(rows []models.RankingRow, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, rows)
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// DumpBars writes the raw fetched bars of one run as parquet under dir.
func DumpBars(dir, name string, bars []models.Bar) (string, error) {
	path := filepath.Join(dir, name+".bars.parquet")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := parquet.WriteFile(path, bars); err != nil {
		return "", fmt.Errorf("dump bars: %w", err)
	}
	return path, nil
}
