package usecase

import (
	"context"
	"fmt"
	"strings"

	"StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/internal/service/calendar"
	"StockRank/internal/services/features"
	"StockRank/pkg/logger"
	"StockRank/pkg/util"
)

// SeriesUseCase builds the dashboard view of one ticker.
type SeriesUseCase struct {
	source  domrepo.BarSource
	session *calendar.Session
	logger  *logger.Logger
}

func NewSeriesUseCase(source domrepo.BarSource, session *calendar.Session, l *logger.Logger) *SeriesUseCase {
	if session == nil {
		session = calendar.NewSession("")
	}
	if l == nil {
		l = logger.Nop()
	}
	return &SeriesUseCase{source: source, session: session, logger: l}
}

type SeriesParams struct {
	Ticker    string
	Start     string
	End       string
	Timeframe domrepo.Timeframe
}

func (uc *SeriesUseCase) GetSeries(ctx context.Context, p SeriesParams) (*models.Series, error) {
	ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	if p.Timeframe == "" {
		p.Timeframe = domrepo.TF1Min
	}
	from, to, err := util.ParseRange(p.Start, p.End)
	if err != nil {
		return nil, err
	}

	bars, err := uc.source.FetchBars(ctx, []string{ticker}, from, to, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", features.ErrEmptyFetch, ticker, util.FormatRange(from, to))
	}
	return BuildSeries(ticker, p.Timeframe, bars, uc.session), nil
}

// BuildSeries converts bars to exchange-local points and cuts them into runs of
// equal trading flag.
func BuildSeries(ticker string, tf domrepo.Timeframe, bars []models.Bar, session *calendar.Session) *models.Series {
	s := &models.Series{Ticker: ticker, Timeframe: tf.String(), Count: len(bars)}
	var cur *models.Segment
	for _, b := range bars {
		pt := models.SeriesPoint{
			Timestamp: b.Timestamp.In(session.Location()),
			Close:     b.Close,
			Volume:    b.Volume,
			IsTrading: session.IsTrading(b.Timestamp),
		}
		if cur == nil || cur.Trading != pt.IsTrading {
			s.Segments = append(s.Segments, models.Segment{Trading: pt.IsTrading, Start: pt.Timestamp})
			cur = &s.Segments[len(s.Segments)-1]
		}
		cur.Points = append(cur.Points, pt)
		cur.End = pt.Timestamp
	}
	return s
}
