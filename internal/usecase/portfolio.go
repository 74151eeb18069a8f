package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/pkg/logger"
	"StockRank/pkg/util"
)

// Portfolio is the in-memory set of tracked symbols. Safe for concurrent use.
type Portfolio struct {
	mu      sync.RWMutex
	symbols map[string]struct{}
	source  domrepo.BarSource
	logger  *logger.Logger
}

func NewPortfolio(source domrepo.BarSource, initial []string, l *logger.Logger) *Portfolio {
	if l == nil {
		l = logger.Nop()
	}
	p := &Portfolio{symbols: make(map[string]struct{}), source: source, logger: l}
	for _, s := range util.NormalizeTickers(initial) {
		p.symbols[s] = struct{}{}
	}
	return p
}

func normalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("symbol required")
	}
	return s, nil
}

// Add reports whether the symbol was newly added.
func (p *Portfolio) Add(symbol string) (bool, error) {
	s, err := normalizeSymbol(symbol)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.symbols[s]; ok {
		return false, nil
	}
	p.symbols[s] = struct{}{}
	return true, nil
}

// Remove reports whether the symbol was present.
func (p *Portfolio) Remove(symbol string) bool {
	s, err := normalizeSymbol(symbol)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.symbols[s]; !ok {
		return false
	}
	delete(p.symbols, s)
	return true
}

func (p *Portfolio) Get(symbol string) (string, bool) {
	s, err := normalizeSymbol(symbol)
	if err != nil {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.symbols[s]
	return s, ok
}

// List returns the symbols sorted.
func (p *Portfolio) List() []string {
	p.mu.RLock()
	out := make([]string, 0, len(p.symbols))
	for s := range p.symbols {
		out = append(out, s)
	}
	p.mu.RUnlock()
	sort.Strings(out)
	return out
}

// FetchAll fetches each symbol separately. A failing symbol is logged and left out.
func (p *Portfolio) FetchAll(ctx context.Context, start, end string, tf domrepo.Timeframe) (map[string][]models.Bar, error) {
	from, to, err := util.ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Bar)
	for _, s := range p.List() {
		bars, err := p.source.FetchBars(ctx, []string{s}, from, to, tf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("portfolio fetch failed", logger.String("symbol", s), logger.Error(err))
			continue
		}
		out[s] = bars
	}
	return out, nil
}
