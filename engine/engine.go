// Package engine acquires raw page markup. Each acquisition strategy is an
// Engine; the Dispatcher races them for the auto strategy.
package engine

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned (wrapped) when a fetched page fails the
// dispatcher's acceptance check, so that a heavier engine is tried.
var ErrRejected = errors.New("engine: result rejected")

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("static", "dynamic",
	// "dynamic-stealth").
	Name() string

	// Fetch retrieves the page markup for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Stealth bool
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}

// AcceptFunc inspects a successful fetch and returns a non-nil error when
// the markup is unusable (e.g. a bot wall or a page rendered client side).
type AcceptFunc func(*FetchResult) error
