package api

import (
	"errors"
	"net/http"

	models "StockRank/internal/domain/models"
	domrepo "StockRank/internal/domain/repository"
	"StockRank/internal/service/alpaca"
	"StockRank/internal/services/features"
	"StockRank/internal/usecase"
	xhttp "StockRank/pkg/http"
	xlogger "StockRank/pkg/logger"
	"StockRank/pkg/util"

	"github.com/labstack/echo/v4"
)

// DashboardEchoHandler serves the series, dimension and portfolio endpoints.
type DashboardEchoHandler struct {
	logger    *xlogger.Logger
	series    *usecase.SeriesUseCase
	portfolio *usecase.Portfolio
}

func NewDashboardEchoHandler(logger *xlogger.Logger, series *usecase.SeriesUseCase, portfolio *usecase.Portfolio) *DashboardEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DashboardEchoHandler{logger: logger, series: series, portfolio: portfolio}
}

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/series", h.Series)
	g.GET("/dimensions", h.Dimensions)
	g.GET("/portfolio", h.ListPortfolio)
	g.GET("/portfolio/bars", h.PortfolioBars)
	g.POST("/portfolio/:symbol", h.AddTicker)
	g.DELETE("/portfolio/:symbol", h.RemoveTicker)
}

func (h *DashboardEchoHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := domrepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	res, err := h.series.GetSeries(c.Request().Context(), usecase.SeriesParams{
		Ticker:    req.Ticker,
		Start:     req.Start,
		End:       req.End,
		Timeframe: tf,
	})
	if err != nil {
		h.logger.Error("series usecase error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) Dimensions(c echo.Context) error {
	req := &models.DimensionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	dims, err := features.FitDimensions(req.InputSize,
		features.WithFallbackHeads(req.FallbackHeads),
		features.WithNumLayers(req.NumLayers),
	)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.SuccessResponse(c, dims)
}

func (h *DashboardEchoHandler) ListPortfolio(c echo.Context) error {
	symbols := h.portfolio.List()
	return xhttp.ListResponse(c, symbols, int64(len(symbols)))
}

func (h *DashboardEchoHandler) PortfolioBars(c echo.Context) error {
	req := &models.PortfolioBarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := domrepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	res, err := h.portfolio.FetchAll(c.Request().Context(), req.Start, req.End, tf)
	if err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) AddTicker(c echo.Context) error {
	req := &models.PortfolioTickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	added, err := h.portfolio.Add(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	if !added {
		return xhttp.SuccessResponse(c, h.portfolio.List())
	}
	h.logger.Info("portfolio ticker added", xlogger.String("symbol", req.Symbol))
	return xhttp.CreatedResponse(c, h.portfolio.List())
}

func (h *DashboardEchoHandler) RemoveTicker(c echo.Context) error {
	req := &models.PortfolioTickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.portfolio.Remove(req.Symbol) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("%s is not in the portfolio", req.Symbol))
	}
	h.logger.Info("portfolio ticker removed", xlogger.String("symbol", req.Symbol))
	return xhttp.SuccessResponse(c, h.portfolio.List())
}

// mapError turns usecase errors into API errors.
func mapError(err error) error {
	var se *xhttp.StatusError
	switch {
	case errors.Is(err, features.ErrEmptyFetch):
		return xhttp.NotFoundError("no bars for the requested range").WithError(err)
	case errors.Is(err, alpaca.ErrUnauthorized):
		return xhttp.NewAppError("ERR_UPSTREAM_AUTH", "", "broker rejected the credentials", http.StatusBadGateway).WithError(err)
	case errors.Is(err, alpaca.ErrRateLimited):
		return xhttp.NewAppError("ERR_RATE_LIMITED", "", "broker rate limit reached", http.StatusTooManyRequests).WithError(err)
	case errors.As(err, &se):
		return xhttp.NewAppError("ERR_UPSTREAM", "", "broker request failed", http.StatusBadGateway).WithError(err)
	case errors.Is(err, util.ErrInvalidDate), errors.Is(err, util.ErrInvalidRange):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	}
	return err
}
