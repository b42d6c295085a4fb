package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"NewsDesk/internal/domain/models"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/internal/service/llm"
	"NewsDesk/internal/service/symbols"
	"NewsDesk/internal/usecase"
	xhttp "NewsDesk/pkg/http"
	xlogger "NewsDesk/pkg/logger"
	"NewsDesk/pkg/util"

	"github.com/labstack/echo/v4"
)

// AnalysisDefaults are the pipeline options a request falls back to.
type AnalysisDefaults struct {
	ModelTier            string
	IncludeMarketContext bool
	UseDispatcher        bool
}

// AnalysisEchoHandler exposes the pipeline, the dispatcher and the market
// context over HTTP.
type AnalysisEchoHandler struct {
	logger     *xlogger.Logger
	pipeline   *usecase.Pipeline
	dispatcher dservice.DataDispatcher
	marketCtx  dservice.MarketContextProvider
	sink       *usecase.ResultProcessor
	articles   ArticleExtractor
	defaults   AnalysisDefaults
}

func NewAnalysisEchoHandler(
	logger *xlogger.Logger,
	pipeline *usecase.Pipeline,
	dispatcher dservice.DataDispatcher,
	marketCtx dservice.MarketContextProvider,
	sink *usecase.ResultProcessor,
	articles ArticleExtractor,
	defaults AnalysisDefaults,
) *AnalysisEchoHandler {
	return &AnalysisEchoHandler{
		logger:     logger,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		marketCtx:  marketCtx,
		sink:       sink,
		articles:   articles,
		defaults:   defaults,
	}
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/analyze", h.Analyze)
	g.POST("/batch", h.Batch)
	g.POST("/data-requests", h.DataRequests)
	g.GET("/market-context", h.MarketContext)
	g.GET("/symbols/normalize", h.Normalize)
}

func (h *AnalysisEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	// The headline never stands in for a missing body.
	if strings.TrimSpace(req.News.Body) == "" && req.URL != "" && h.articles != nil {
		body, err := h.articles.Extract(ctx, req.URL)
		if err != nil {
			h.logger.Warn("article extraction failed", xlogger.String("url", req.URL), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("could not extract article body").WithField("url").WithError(err))
		}
		req.News.Body = body
		if req.News.Source == "" {
			req.News.Source = req.URL
		}
	}

	res, err := h.pipeline.Run(ctx, req.News, usecase.Options{
		ModelTier:            h.tier(req.ModelTier),
		IncludeMarketContext: orDefault(req.IncludeMarketContext, h.defaults.IncludeMarketContext),
		UseDispatcher:        orDefault(req.UseDispatcher, h.defaults.UseDispatcher),
		SkipExecutor:         req.SkipExecutor,
	})
	if err != nil {
		h.logger.Error("analyze usecase error", xlogger.String("news_id", req.News.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	h.send(ctx, func(ctx context.Context) error { return h.sink.Process(ctx, res) })
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Batch(c echo.Context) error {
	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	tier := h.tier(req.ModelTier)
	if _, err := h.pipeline.ResolveTier(tier); err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}

	res := h.pipeline.RunBatch(ctx, req.Items, usecase.BatchOptions{
		Options: usecase.Options{
			ModelTier:            tier,
			IncludeMarketContext: orDefault(req.IncludeMarketContext, h.defaults.IncludeMarketContext),
			UseDispatcher:        orDefault(req.UseDispatcher, h.defaults.UseDispatcher),
		},
		Concurrency: req.Concurrency,
	})
	h.send(ctx, func(ctx context.Context) error { return h.sink.ProcessBatch(ctx, res.Results) })
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) DataRequests(c echo.Context) error {
	req := &models.DataRequestsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.dispatcher == nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("data dispatcher is not configured"))
	}

	opts := dservice.DispatchOptions{ReferenceDate: util.ParseTimeDefault(req.ReferenceDate, time.Now())}
	if len(req.AllowedSymbols) > 0 {
		opts.AllowedSymbols = symbols.AllowSet(req.AllowedSymbols)
	}
	pack := h.dispatcher.Execute(c.Request().Context(), req.Requests, opts)
	return xhttp.SuccessResponse(c, pack)
}

func (h *AnalysisEchoHandler) MarketContext(c echo.Context) error {
	if h.marketCtx == nil {
		return xhttp.SuccessResponse(c, models.NeutralMarketContext(time.Now()))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, h.marketCtx.Fetch(c.Request().Context()))
}

func (h *AnalysisEchoHandler) Normalize(c echo.Context) error {
	req := &models.NormalizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"asset":         req.Asset,
		"symbol":        symbols.Normalize(req.Asset),
		"exchange":      symbols.Exchange(req.Asset),
		"knownExchange": symbols.IsKnownExchange(symbols.Exchange(req.Asset)),
	})
}

func (h *AnalysisEchoHandler) tier(requested string) string {
	if requested != "" {
		return requested
	}
	return h.defaults.ModelTier
}

// send delivers results to the sink. A sink failure is logged and never
// fails the response; the caller already has the analysis.
func (h *AnalysisEchoHandler) send(ctx context.Context, fn func(context.Context) error) {
	if h.sink == nil {
		return
	}
	if err := fn(ctx); err != nil {
		h.logger.Error("result sink error", xlogger.String("backend", h.sink.Backend()), xlogger.Error(err))
	}
}

// appError maps pipeline failures onto HTTP statuses.
func appError(err error) *xhttp.AppError {
	var parseErr *usecase.ParseError
	switch {
	case errors.Is(err, usecase.ErrEmptyBody):
		return xhttp.BadRequestError("news body is empty").WithField("body").WithError(err)
	case errors.Is(err, llm.ErrUnknownTier):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.As(err, &parseErr):
		return xhttp.UnprocessableError("could not parse " + parseErr.Stage + " output").WithError(err)
	case errors.Is(err, xhttp.ErrRateLimited):
		return xhttp.TooManyRequestsError("upstream rate limit exceeded").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("analysis timed out").WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}

func orDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
