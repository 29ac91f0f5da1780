// Package runner is the entry point shared by the CLI, the HTTP API and
// the MCP bridge. It acquires markup with the requested strategy, parses
// it with the configured query backend, runs the extraction pipeline and
// logs the run summary.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/extract"
	"github.com/use-agent/shelfscan/listing"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/normalize"
	"github.com/use-agent/shelfscan/pipeline"
	"golang.org/x/net/html"
)

// Backend selects the query language used to locate listing fields.
type Backend string

const (
	BackendCSS   Backend = "css"
	BackendXPath Backend = "xpath"
)

// ParseBackend validates a backend name. The empty string maps to css.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendCSS:
		return BackendCSS, nil
	case BackendXPath:
		return BackendXPath, nil
	}
	return "", fmt.Errorf("unknown backend %q (want css or xpath)", s)
}

// errNoBlocks rejects fetched markup without listing blocks so the auto
// strategy escalates.
var errNoBlocks = errors.New("no listing blocks in markup")

// Options configures a Runner.
type Options struct {
	Backend    Backend
	Layout     listing.LayoutSet
	Normalizer *normalize.Normalizer

	// EscalationDelays stagger static and dynamic under the auto strategy.
	EscalationDelays []time.Duration

	// Memory remembers the winning engine per host. May be nil.
	Memory *engine.DomainMemory

	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

// OptionsFromConfig builds Options from configuration, loading the layout
// file when one is configured.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	backend, err := ParseBackend(cfg.Extract.Backend)
	if err != nil {
		return Options{}, err
	}

	layout := listing.AmazonSearch()
	if cfg.Extract.LayoutFile != "" {
		if layout, err = listing.LoadLayout(cfg.Extract.LayoutFile); err != nil {
			return Options{}, err
		}
	}

	n, err := normalize.New(
		normalize.WithDefaultCurrency(cfg.Extract.DefaultCurrency),
		normalize.WithRatingScale(cfg.Extract.RatingScale),
	)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Backend:          backend,
		Layout:           layout,
		Normalizer:       n,
		EscalationDelays: cfg.Engine.EscalationDelays,
		DefaultTimeout:   cfg.Scraper.DefaultTimeout,
		MaxTimeout:       cfg.Scraper.MaxTimeout,
	}, nil
}

// Runner is safe for concurrent use; every run works on its own document.
type Runner struct {
	backend Backend
	layout  string

	cssLocator   *listing.CSSLocator
	xpathLocator *listing.XPathLocator
	css          *pipeline.Pipeline[*goquery.Document, *goquery.Selection]
	xpath        *pipeline.Pipeline[*html.Node, *html.Node]

	engines map[models.Strategy]engine.Engine

	defaultTimeout time.Duration
	maxTimeout     time.Duration
}

// New builds a Runner. static and dynamic may be nil, in which case the
// corresponding strategy is unavailable; auto races whichever exist.
func New(opts Options, static, dynamic engine.Engine) (*Runner, error) {
	if opts.Normalizer == nil {
		n, err := normalize.New()
		if err != nil {
			return nil, err
		}
		opts.Normalizer = n
	}
	if opts.Backend == "" {
		opts.Backend = BackendCSS
	}

	cssLoc, err := listing.NewCSSLocator(opts.Layout.CSS)
	if err != nil {
		return nil, err
	}
	xpathLoc, err := listing.NewXPathLocator(opts.Layout.XPath)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		backend:        opts.Backend,
		layout:         opts.Layout.Name,
		cssLocator:     cssLoc,
		xpathLocator:   xpathLoc,
		css:            pipeline.New(extract.New[*goquery.Document, *goquery.Selection](cssLoc, opts.Normalizer)),
		xpath:          pipeline.New(extract.New[*html.Node, *html.Node](xpathLoc, opts.Normalizer)),
		engines:        make(map[models.Strategy]engine.Engine, 3),
		defaultTimeout: opts.DefaultTimeout,
		maxTimeout:     opts.MaxTimeout,
	}

	var race []engine.Engine
	if static != nil {
		r.engines[models.StrategyStatic] = static
		race = append(race, static)
	}
	if dynamic != nil {
		r.engines[models.StrategyDynamic] = dynamic
		race = append(race, dynamic)
	}
	if len(race) > 0 {
		r.engines[models.StrategyAuto] = engine.NewDispatcher(race, opts.EscalationDelays, opts.Memory, r.acceptListings)
	}
	return r, nil
}

// Backend returns the configured query backend.
func (r *Runner) Backend() Backend { return r.backend }

// Supports reports whether an engine is available for the strategy.
func (r *Runner) Supports(s models.Strategy) bool {
	_, ok := r.engines[s]
	return ok
}

// Result is the outcome of a Scrape.
type Result struct {
	Summary *pipeline.RunSummary

	Engine     string
	FinalURL   string
	Title      string
	StatusCode int

	FetchDuration   time.Duration
	ExtractDuration time.Duration
}

// ScrapeOptions tunes one Scrape call.
type ScrapeOptions struct {
	Timeout time.Duration
	Stealth bool
	Headers map[string]string
}

// Scrape acquires rawURL with the given strategy and extracts its listings.
// Errors are *models.ScrapeError.
func (r *Runner) Scrape(ctx context.Context, rawURL string, strategy models.Strategy, opts ScrapeOptions) (*Result, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err)
	}
	eng, ok := r.engines[strategy]
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("strategy %q is not available", strategy), nil)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	if r.maxTimeout > 0 && timeout > r.maxTimeout {
		timeout = r.maxTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fetchStart := time.Now()
	fetched, err := eng.Fetch(ctx, &engine.FetchRequest{
		URL:     rawURL,
		Headers: opts.Headers,
		Timeout: timeout,
		Stealth: opts.Stealth,
	})
	fetchDur := time.Since(fetchStart)
	if err != nil {
		serr := fetchError(err)
		slog.Warn("fetch failed", "url", rawURL, "strategy", strategy, "code", serr.Code, "error", err)
		return nil, serr
	}
	slog.Debug("fetched", "url", rawURL, "engine", fetched.EngineName,
		"status", fetched.StatusCode, "bytes", len(fetched.HTML), "duration", fetchDur)

	extractStart := time.Now()
	sum, err := r.Process(fetched.HTML, strategy)
	if err != nil {
		return nil, err
	}

	return &Result{
		Summary:         sum,
		Engine:          fetched.EngineName,
		FinalURL:        fetched.FinalURL,
		Title:           fetched.Title,
		StatusCode:      fetched.StatusCode,
		FetchDuration:   fetchDur,
		ExtractDuration: time.Since(extractStart),
	}, nil
}

// Process extracts listings from markup the caller already holds. strategy
// only labels the summary. Errors are *models.ScrapeError.
func (r *Runner) Process(markup string, strategy models.Strategy) (*pipeline.RunSummary, error) {
	sum, err := r.run(markup)
	if err != nil {
		serr := extractError(err)
		slog.Warn("extraction failed", "strategy", strategy, "backend", r.backend,
			"layout", r.layout, "code", serr.Code, "error", err)
		return nil, serr
	}
	sum.Strategy = string(strategy)
	logSummary(sum, r.backend, r.layout)
	return sum, nil
}

func (r *Runner) run(markup string) (*pipeline.RunSummary, error) {
	if r.backend == BackendXPath {
		root, err := listing.ParseNodes(markup)
		if err != nil {
			return nil, err
		}
		return r.xpath.Run(root)
	}
	doc, err := listing.ParseHTML(markup)
	if err != nil {
		return nil, err
	}
	return r.css.Run(doc)
}

// acceptListings is the auto strategy's acceptance check.
func (r *Runner) acceptListings(res *engine.FetchResult) error {
	if r.backend == BackendXPath {
		root, err := listing.ParseNodes(res.HTML)
		if err != nil {
			return err
		}
		for range r.xpathLocator.LocateBlocks(root) {
			return nil
		}
		return errNoBlocks
	}
	doc, err := listing.ParseHTML(res.HTML)
	if err != nil {
		return err
	}
	for range r.cssLocator.LocateBlocks(doc) {
		return nil
	}
	return errNoBlocks
}

func logSummary(sum *pipeline.RunSummary, backend Backend, layout string) {
	slog.Info("listing run complete",
		"strategy", sum.Strategy,
		"backend", backend,
		"layout", layout,
		"total", sum.Total,
		"successes", sum.Successes,
		"partial", sum.Partial,
		"failures", sum.Failures,
		"duplicates", sum.Duplicates,
		"records", len(sum.Records),
	)
	for _, o := range sum.Outcomes {
		switch o.Status {
		case extract.StatusFailure:
			slog.Debug("block failed", "index", o.Index, "reason", o.Reason, "snippet", o.Snippet)
		case extract.StatusPartial:
			slog.Debug("block partial", "index", o.Index, "name", o.Record.Name, "missing", o.Missing)
		}
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// fetchError maps engine failures to ScrapeErrors.
func fetchError(err error) *models.ScrapeError {
	var serr *models.ScrapeError
	if errors.As(err, &serr) {
		return serr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "page acquisition timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, "failed to fetch page", err)
	}
}

// extractError maps run-level extraction failures to ScrapeErrors.
func extractError(err error) *models.ScrapeError {
	var parseErr *listing.DocumentParseError
	switch {
	case errors.Is(err, pipeline.ErrNoListingsFound):
		return models.NewScrapeError(models.ErrCodeNoListings,
			"no listing blocks found; the page layout may have changed or the page is empty", err)
	case errors.As(err, &parseErr):
		return models.NewScrapeError(models.ErrCodeParseFailed, "document could not be parsed", err)
	default:
		return models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
}
