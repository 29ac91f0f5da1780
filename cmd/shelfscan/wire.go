package main

import (
	"log/slog"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/runner"
	"github.com/use-agent/shelfscan/scraper"
)

// services bundles what a command needs. Close releases the browser and
// background sweeps.
type services struct {
	runner  *runner.Runner
	scraper *scraper.Scraper
	memory  *engine.DomainMemory
}

func (s *services) Close() {
	s.memory.Stop()
	if s.scraper != nil {
		s.scraper.Close()
	}
}

// buildServices wires engines and the runner from cfg. The browser is only
// launched when withBrowser is set and the browser is enabled.
func buildServices(cfg *config.Config, withBrowser bool) (*services, error) {
	opts, err := runner.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &services{memory: engine.NewDomainMemory(cfg.Engine.MemoryTTL, cfg.Engine.MemoryTTL/24)}
	opts.Memory = s.memory

	static := engine.NewHTTPEngine(engine.HTTPOptions{
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Scraper.AcceptLanguage,
		Timeout:        cfg.Engine.HTTPTimeout,
	})

	var dynamic engine.Engine
	if withBrowser && cfg.Browser.Enabled {
		sc, err := scraper.New(cfg.Browser, cfg.Scraper, opts.Layout.CSS.Block)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.scraper = sc
		dynamic = engine.NewBrowserEngine(sc.Render, false)
	}

	rn, err := runner.New(opts, static, dynamic)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.runner = rn

	slog.Info("runner ready",
		"backend", opts.Backend,
		"layout", opts.Layout.Name,
		"browser", dynamic != nil,
		"delays", opts.EscalationDelays,
	)
	return s, nil
}
