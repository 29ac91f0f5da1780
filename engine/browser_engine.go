package engine

import (
	"context"
	"fmt"
)

// RenderFunc renders a page in a browser and returns its markup. It is
// injected from main so that engine never imports the scraper package.
type RenderFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// BrowserEngine implements the dynamic strategy by delegating to a
// RenderFunc. The stealth variant always masks automation markers.
type BrowserEngine struct {
	render       RenderFunc
	forceStealth bool
	name         string
}

// NewBrowserEngine creates a BrowserEngine named "dynamic", or
// "dynamic-stealth" when forceStealth is set.
func NewBrowserEngine(render RenderFunc, forceStealth bool) *BrowserEngine {
	name := "dynamic"
	if forceStealth {
		name = "dynamic-stealth"
	}
	return &BrowserEngine{render: render, forceStealth: forceStealth, name: name}
}

func (e *BrowserEngine) Name() string { return e.name }

func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.render == nil {
		return nil, fmt.Errorf("%s: no renderer configured", e.name)
	}

	r := *req
	if e.forceStealth {
		r.Stealth = true
	}

	result, err := e.render(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	result.EngineName = e.name
	return result, nil
}
