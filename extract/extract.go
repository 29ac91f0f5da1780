// Package extract turns one listing block into a classified outcome.
//
// A product listing is only as good as its name: a block without a usable
// name fails, while missing or unparseable price and rating fields only
// downgrade the outcome to a partial success.
package extract

import (
	"errors"
	"fmt"
	"slices"

	"github.com/use-agent/shelfscan/listing"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/normalize"
)

// Block-level failure reasons.
var (
	ErrNoName      = errors.New("no name")
	ErrFieldAbsent = errors.New("field absent")
)

// Status classifies an Outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusPartial
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartial:
		return "partial"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of extracting one block. Exactly one outcome is
// produced per located block.
type Outcome struct {
	Index  int
	Status Status

	// Record is set for success and partial outcomes.
	Record *models.Record

	// Missing lists, in role order, the commercial fields that were absent
	// or failed to normalize. Empty for successes.
	Missing []listing.Role

	// FieldErrors holds the cause per missing role.
	FieldErrors map[listing.Role]error

	// Reason is set for failures and wraps ErrNoName.
	Reason error

	// Snippet is a short excerpt of a failed block, when the locator can
	// describe blocks.
	Snippet string
}

// Extractor applies a Locator and a Normalizer to single blocks. It holds
// no mutable state and may be shared between goroutines.
type Extractor[D, B any] struct {
	locator    listing.Locator[D, B]
	normalizer *normalize.Normalizer
}

// New creates an Extractor.
func New[D, B any](loc listing.Locator[D, B], n *normalize.Normalizer) *Extractor[D, B] {
	return &Extractor[D, B]{locator: loc, normalizer: n}
}

// Locator returns the locator the extractor queries.
func (e *Extractor[D, B]) Locator() listing.Locator[D, B] { return e.locator }

// Extract queries all three roles on the block and classifies the result.
// It never panics on malformed input; every failure path is an Outcome.
func (e *Extractor[D, B]) Extract(index int, block B) Outcome {
	out := Outcome{Index: index}

	name, err := e.name(block)
	if err != nil {
		out.Status = StatusFailure
		out.Reason = fmt.Errorf("%w: %w", ErrNoName, err)
		if d, ok := any(e.locator).(listing.Describer[B]); ok {
			out.Snippet = d.Describe(block)
		}
		return out
	}

	rec := &models.Record{Name: name}
	fieldErrs := make(map[listing.Role]error, 2)

	if price, err := e.price(block); err != nil {
		fieldErrs[listing.RolePrice] = err
	} else {
		rec.Price = &price
	}
	if rating, err := e.rating(block); err != nil {
		fieldErrs[listing.RoleRating] = err
	} else {
		rec.Rating = &rating
	}

	out.Record = rec
	if len(fieldErrs) == 0 {
		out.Status = StatusSuccess
		return out
	}

	out.Status = StatusPartial
	out.FieldErrors = fieldErrs
	for role := range fieldErrs {
		out.Missing = append(out.Missing, role)
	}
	slices.Sort(out.Missing)
	return out
}

func (e *Extractor[D, B]) name(block B) (string, error) {
	frag := e.locator.QueryField(block, listing.RoleName)
	if !frag.Present {
		return "", ErrFieldAbsent
	}
	return normalize.Name(frag.Text)
}

func (e *Extractor[D, B]) price(block B) (models.Price, error) {
	frag := e.locator.QueryField(block, listing.RolePrice)
	if !frag.Present {
		return models.Price{}, ErrFieldAbsent
	}
	return e.normalizer.Price(frag.Text)
}

func (e *Extractor[D, B]) rating(block B) (float64, error) {
	frag := e.locator.QueryField(block, listing.RoleRating)
	if !frag.Present {
		return 0, ErrFieldAbsent
	}
	return e.normalizer.Rating(frag.Text)
}
