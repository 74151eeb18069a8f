package repository

import (
	"fmt"
	"strings"
)

// Timeframe is a bar aggregation period in broker notation.
type Timeframe string

const (
	TF1Min  Timeframe = "1Min"
	TF5Min  Timeframe = "5Min"
	TF15Min Timeframe = "15Min"
	TF1Hour Timeframe = "1Hour"
	TF1Day  Timeframe = "1Day"
)

// ParseTimeframe accepts broker notation and a few short aliases (1m, 1h, 1d).
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1min", "1m":
		return TF1Min, nil
	case "5min", "5m":
		return TF5Min, nil
	case "15min", "15m":
		return TF15Min, nil
	case "1hour", "1h":
		return TF1Hour, nil
	case "1day", "1d", "":
		return TF1Day, nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

func (tf Timeframe) String() string { return string(tf) }
