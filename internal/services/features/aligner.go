package features

import (
	"fmt"
	"sort"
	"time"

	"StockRank/internal/domain/models"
)

// DuplicatePolicy decides what happens when one ticker has several bars at one timestamp.
type DuplicatePolicy int

const (
	// DuplicateKeepLast keeps the latest bar in source order.
	DuplicateKeepLast DuplicatePolicy = iota
	// DuplicateReject fails the alignment.
	DuplicateReject
)

// ParseDuplicatePolicy maps config strings to a policy. Empty means keep_last.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "keep_last", "last":
		return DuplicateKeepLast, nil
	case "reject":
		return DuplicateReject, nil
	}
	return 0, fmt.Errorf("unknown duplicate policy %q", s)
}

// AlignStats describes what the aligner saw.
type AlignStats struct {
	Groups     int
	Duplicates int
	Discarded  int
	Missing    int // ticker blocks zero-filled
}

// Aligner turns ragged multi-ticker bars into fixed-width DayVectors.
type Aligner struct {
	policy DuplicatePolicy
}

func NewAligner(policy DuplicatePolicy) *Aligner {
	return &Aligner{policy: policy}
}

// Align groups bars by exact timestamp and lays out each group in ticker order.
// Tickers absent from a group get a block of zeros. Each ticker may appear once in tickers.
func (a *Aligner) Align(bars []models.Bar, tickers []string) ([]models.DayVector, AlignStats, error) {
	var stats AlignStats
	if len(tickers) == 0 {
		return nil, stats, ErrNoTickers
	}

	slot := make(map[string]int, len(tickers))
	for i, t := range tickers {
		if _, ok := slot[t]; ok {
			return nil, stats, fmt.Errorf("%w: %s", ErrDuplicateTicker, t)
		}
		slot[t] = i
	}

	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	width := models.FeaturesPerTicker * len(tickers)
	out := make([]models.DayVector, 0, len(sorted)/len(tickers)+1)

	for start := 0; start < len(sorted); {
		ts := sorted[start].Timestamp
		end := start
		for end < len(sorted) && sorted[end].Timestamp.Equal(ts) {
			end++
		}
		stats.Groups++

		vec, dups, missing, err := a.layout(sorted[start:end], tickers, slot, ts)
		if err != nil {
			return nil, stats, err
		}
		stats.Duplicates += dups
		stats.Missing += missing

		if len(vec) != width {
			stats.Discarded++
		} else {
			out = append(out, models.DayVector{Timestamp: ts, Values: vec})
		}
		start = end
	}
	return out, stats, nil
}

func (a *Aligner) layout(group []models.Bar, tickers []string, slot map[string]int, ts time.Time) ([]float64, int, int, error) {
	picked := make([]*models.Bar, len(tickers))
	dups := 0
	for i := range group {
		idx, ok := slot[group[i].Symbol]
		if !ok {
			continue
		}
		if picked[idx] != nil {
			if a.policy == DuplicateReject {
				return nil, 0, 0, fmt.Errorf("%w: %s at %s", ErrDuplicateBar, group[i].Symbol, ts.Format(time.RFC3339))
			}
			dups++
		}
		picked[idx] = &group[i]
	}

	vec := make([]float64, 0, models.FeaturesPerTicker*len(tickers))
	missing := 0
	for _, b := range picked {
		if b == nil {
			missing++
			vec = append(vec, make([]float64, models.FeaturesPerTicker)...)
			continue
		}
		f := b.Features()
		vec = append(vec, f[:]...)
	}
	return vec, dups, missing, nil
}
