package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultTickers is the universe used when nothing else is configured.
var DefaultTickers = []string{
	"AAPL", "GOOG", "MSFT", "AMZN", "TSLA", "META", "NVDA", "NFLX", "PYPL", "ADBE",
	"INTC", "AMD", "CRM", "ORCL", "CSCO", "QCOM", "AVGO", "TXN", "MU", "AMAT",
	"IBM", "INTU", "LRCX", "XLNX", "ADI", "NVAX", "SHOP", "MRNA", "BA", "JPM",
	"V", "MA", "UNH", "PFE", "JNJ", "PG", "DIS", "KO", "PEP", "COST",
	"HD", "WMT", "TGT", "MCD", "NKE", "SBUX", "GS", "MS", "BKNG", "AXP",
}

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// SplitList splits a comma separated value and trims each element.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeTickers upper-cases, trims, drops empties and dedups. First-seen order is kept,
// since it fixes the DayVector layout and the tie order of rankings.
func NormalizeTickers(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// LoadTickersFile reads a .json string array or a text file with one ticker per line.
// Text lines may also hold comma separated tickers; lines starting with # are skipped.
func LoadTickersFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tickers file %s: %w", path, err)
	}

	var tickers []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(content, &tickers); err != nil {
			return nil, fmt.Errorf("parse tickers json: %w", err)
		}
	default:
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tickers = append(tickers, SplitList(line)...)
		}
	}

	tickers = NormalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("tickers file %s is empty", path)
	}
	return tickers, nil
}
