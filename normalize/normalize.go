// Package normalize converts raw text fragments pulled out of listing
// markup into typed values. Every function here is pure and deterministic.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/unicode/norm"
)

// Field-level normalization failures. Callers classify these into
// partial or failed outcomes; they are never fatal to a run.
var (
	ErrEmptyField        = errors.New("empty field")
	ErrUnparseablePrice  = errors.New("unparseable price")
	ErrUnparseableRating = errors.New("unparseable rating")
)

const (
	// DefaultCurrency is assumed when price text carries no symbol or code.
	DefaultCurrency = "USD"

	// DefaultRatingScale is the upper bound of the accepted rating range.
	DefaultRatingScale = 5.0
)

// Normalizer holds the locale-dependent settings used for prices and
// ratings. A zero Normalizer is not usable; construct one with New.
type Normalizer struct {
	defaultCurrency string
	ratingScale     float64
	symbols         []symbol
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithDefaultCurrency sets the ISO 4217 code used when price text has no
// currency marker (e.g. Amazon's a-price-whole span).
func WithDefaultCurrency(code string) Option {
	return func(n *Normalizer) { n.defaultCurrency = strings.ToUpper(strings.TrimSpace(code)) }
}

// WithRatingScale sets the inclusive upper bound for ratings.
func WithRatingScale(max float64) Option {
	return func(n *Normalizer) { n.ratingScale = max }
}

// WithSymbol maps an additional currency symbol to an ISO 4217 code.
// Later registrations take precedence over the built-in table.
func WithSymbol(sym, code string) Option {
	return func(n *Normalizer) {
		n.symbols = append([]symbol{{text: sym, code: strings.ToUpper(code)}}, n.symbols...)
	}
}

// New builds a Normalizer. It fails when the configured default currency
// or any registered symbol maps to an unknown ISO code, or when the rating
// scale is not positive.
func New(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		defaultCurrency: DefaultCurrency,
		ratingScale:     DefaultRatingScale,
		symbols:         append([]symbol(nil), builtinSymbols...),
	}
	for _, opt := range opts {
		opt(n)
	}

	if _, err := currency.ParseISO(n.defaultCurrency); err != nil {
		return nil, fmt.Errorf("normalize: default currency %q: %w", n.defaultCurrency, err)
	}
	for _, s := range n.symbols {
		if _, err := currency.ParseISO(s.code); err != nil {
			return nil, fmt.Errorf("normalize: symbol %q maps to %q: %w", s.text, s.code, err)
		}
	}
	if n.ratingScale <= 0 {
		return nil, fmt.Errorf("normalize: rating scale must be positive, got %v", n.ratingScale)
	}
	sortSymbols(n.symbols)
	return n, nil
}

// DefaultCurrency returns the fallback currency code.
func (n *Normalizer) DefaultCurrency() string { return n.defaultCurrency }

// RatingScale returns the inclusive upper bound for ratings.
func (n *Normalizer) RatingScale() float64 { return n.ratingScale }

// Name trims the text, collapses internal whitespace runs to a single
// space and returns ErrEmptyField when nothing is left.
func Name(text string) (string, error) {
	name := collapse(norm.NFC.String(text))
	if name == "" {
		return "", ErrEmptyField
	}
	return name, nil
}

// collapse trims and folds every Unicode whitespace run (including NBSP)
// into a single ASCII space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
