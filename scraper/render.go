package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
	"github.com/ysmood/gson"
)

// Render loads req.URL in a pooled tab and returns the rendered markup.
// It has the engine.RenderFunc signature.
//
// Order matters: stealth, headers and the hijack router only affect
// navigations started after they are installed.
//
//  1. deadline       cap req.Timeout at MaxTimeout
//  2. acquire tab    from the pool; always returned via about:blank
//  3. stealth        mask navigator.webdriver and friends
//  4. identity       user agent, Accept-Language, extra headers
//  5. hijack         block images, fonts, media
//  6. navigate
//  7. wait listing   up to ListingWait for the first listing block
//  8. scroll         to the bottom so lazy blocks load
//  9. settle         DOM stable, capped at SettleTimeout
//  10. read          HTML, title, final URL, status
func (s *Scraper) Render(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.scraperCfg.DefaultTimeout
	}
	if s.scraperCfg.MaxTimeout > 0 && timeout > s.scraperCfg.MaxTimeout {
		timeout = s.scraperCfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, err := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}
	defer func() {
		// Uses the page without the request context so cleanup still runs
		// after a deadline.
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	if req.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if s.scraperCfg.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{
			UserAgent:      s.scraperCfg.UserAgent,
			AcceptLanguage: s.scraperCfg.AcceptLanguage,
		}.Call(page)
	}
	if len(req.Headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(req.Headers)}.Call(page)
	}

	if router := setupHijack(page, s.scraperCfg.BlockedResourceTypes); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	s.waitForListings(p)

	if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		slog.Debug("scroll to bottom failed", "url", req.URL, "error", err)
	}
	s.settle(p)

	markup, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalString(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}
	return &engine.FetchResult{
		HTML:       markup,
		Title:      evalString(p, `() => document.title`),
		StatusCode: navigationStatus(p),
		FinalURL:   finalURL,
	}, nil
}

// waitForListings blocks until at least one listing block exists or
// ListingWait elapses. A timeout is not an error: the extractor reports a
// page without blocks as no listings found.
func (s *Scraper) waitForListings(p *rod.Page) {
	if s.waitFor == "" || s.scraperCfg.ListingWait <= 0 {
		return
	}
	wp := p.Timeout(s.scraperCfg.ListingWait)
	defer wp.CancelTimeout()
	if err := wp.WaitElementsMoreThan(s.waitFor, 0); err != nil {
		slog.Warn("listing blocks did not appear", "selector", s.waitFor,
			"wait", s.scraperCfg.ListingWait, "error", err)
	}
}

// settle waits for the DOM to stop changing after the scroll.
func (s *Scraper) settle(p *rod.Page) {
	if s.scraperCfg.SettleTimeout <= 0 {
		return
	}
	sp := p.Timeout(s.scraperCfg.SettleTimeout)
	defer sp.CancelTimeout()
	if err := sp.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("DOM did not settle, proceeding with current DOM", "error", err)
	}
}

// navigationStatus reads the document's HTTP status from the Navigation
// Timing API. CDP response events conflict with request hijacking.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const e = performance.getEntriesByType("navigation");
			if (e.length > 0) return e[0].responseStatus || 0;
		} catch (_) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func evalString(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts headers to the map[string]gson.JSON form CDP expects.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// primaryLanguage returns the first tag of an Accept-Language value.
func primaryLanguage(acceptLanguage string) string {
	first, _, _ := strings.Cut(acceptLanguage, ",")
	first, _, _ = strings.Cut(first, ";")
	return strings.TrimSpace(first)
}

// categorizeError wraps browser errors into ScrapeErrors so callers can
// map them to status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
