package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/pipeline"
	"github.com/use-agent/shelfscan/runner"
)

// ScrapeListings returns a handler for POST /api/v1/listings/scrape.
//
//  1. bind and default the request
//  2. serve from cache when max_age allows
//  3. runner.Scrape: fetch with the strategy, then extract
//  4. fill counts, records, failures and timing
//  5. store in cache when max_age was given
func ScrapeListings(rn *runner.Runner, cc *cache.Cache, defaultStrategy models.Strategy) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ListingsScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}
		if req.Strategy == "" {
			req.Strategy = string(defaultStrategy)
		}
		req.Defaults()
		strategy := models.Strategy(req.Strategy)

		key := cache.Key(req.URL, strategy, string(rn.Backend()), req.Stealth)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(key, req.MaxAge); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		res, err := rn.Scrape(c.Request.Context(), req.URL, strategy, runner.ScrapeOptions{
			Timeout: time.Duration(req.Timeout) * time.Second,
			Stealth: req.Stealth,
		})
		if err != nil {
			respondError(c, err, models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}

		resp := newResponse(res.Summary, rn.Backend())
		resp.StatusCode = res.StatusCode
		resp.FinalURL = res.FinalURL
		resp.Title = res.Title
		resp.EngineUsed = res.Engine
		resp.Timing = models.TimingInfo{
			TotalMs:   time.Since(totalStart).Milliseconds(),
			FetchMs:   res.FetchDuration.Milliseconds(),
			ExtractMs: res.ExtractDuration.Milliseconds(),
		}

		if cc != nil && req.MaxAge > 0 {
			cc.Set(key, resp)
			stored := *resp
			stored.CacheStatus = "miss"
			c.JSON(http.StatusOK, stored)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ExtractListings returns a handler for POST /api/v1/listings/extract,
// which runs extraction over markup supplied by the caller.
func ExtractListings(rn *runner.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ListingsExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}
		req.Defaults()

		sum, err := rn.Process(req.HTML, models.Strategy(req.Strategy))
		elapsed := time.Since(totalStart).Milliseconds()
		if err != nil {
			respondError(c, err, models.TimingInfo{TotalMs: elapsed, ExtractMs: elapsed})
			return
		}

		resp := newResponse(sum, rn.Backend())
		resp.FinalURL = req.SourceURL
		resp.Timing = models.TimingInfo{TotalMs: elapsed, ExtractMs: elapsed}
		c.JSON(http.StatusOK, resp)
	}
}

func newResponse(sum *pipeline.RunSummary, backend runner.Backend) *models.ListingsResponse {
	resp := &models.ListingsResponse{
		Success:  true,
		Strategy: sum.Strategy,
		Backend:  string(backend),
		Summary: &models.RunCounts{
			Total:      sum.Total,
			Successes:  sum.Successes,
			Partial:    sum.Partial,
			Failures:   sum.Failures,
			Duplicates: sum.Duplicates,
		},
		Records: sum.Records,
	}
	if resp.Records == nil {
		resp.Records = []models.Record{}
	}
	for _, o := range sum.Failed() {
		f := models.BlockFailure{Index: o.Index, Snippet: o.Snippet}
		if o.Reason != nil {
			f.Reason = o.Reason.Error()
		}
		resp.Failures = append(resp.Failures, f)
	}
	return resp
}

// respondError writes err as a structured error response with the status
// its code maps to.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ListingsResponse{
		Success: false,
		Records: []models.Record{},
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeNavigation:
		return http.StatusBadGateway
	case models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeNoListings, models.ErrCodeParseFailed:
		return http.StatusUnprocessableEntity
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
