// Package pipeline runs the extractor over every listing block of one
// document, removes duplicate records and aggregates a run summary.
package pipeline

import (
	"errors"

	"github.com/use-agent/shelfscan/extract"
	"github.com/use-agent/shelfscan/models"
)

// ErrNoListingsFound is returned when a document contains no locatable
// listing block. It usually means the page structure changed or the page
// is empty, and is distinct from a run whose blocks all failed.
var ErrNoListingsFound = errors.New("no listings found")

// RunSummary is the immutable result of one run.
//
// Total = Successes + Partial + Failures + Duplicates. Duplicates are
// counted separately and not included in Successes or Partial.
type RunSummary struct {
	// Strategy names how the markup was acquired. It is set by the caller
	// for diagnostics and never influences extraction.
	Strategy   string `json:"strategy,omitempty"`
	Total      int    `json:"total"`
	Successes  int    `json:"successes"`
	Partial    int    `json:"partial"`
	Failures   int    `json:"failures"`
	Duplicates int    `json:"duplicates"`

	// Records holds the surviving records in document order.
	Records []models.Record `json:"records"`

	// Outcomes holds one outcome per located block, in document order,
	// including those of dropped duplicates.
	Outcomes []extract.Outcome `json:"-"`

	// DuplicateOf maps the index of each dropped block to the index of the
	// block whose record it duplicated.
	DuplicateOf map[int]int `json:"-"`
}

// Failed returns the failure outcomes in document order.
func (s *RunSummary) Failed() []extract.Outcome {
	var out []extract.Outcome
	for _, o := range s.Outcomes {
		if o.Status == extract.StatusFailure {
			out = append(out, o)
		}
	}
	return out
}

// Pipeline orchestrates one run per document. It holds no state between
// runs; independent documents may be processed concurrently.
type Pipeline[D, B any] struct {
	extractor *extract.Extractor[D, B]
}

// New creates a Pipeline around an extractor.
func New[D, B any](ex *extract.Extractor[D, B]) *Pipeline[D, B] {
	return &Pipeline[D, B]{extractor: ex}
}

// Run extracts every block of doc.
//
// A single block's failure never fails the run. The only error returned is
// ErrNoListingsFound.
func (p *Pipeline[D, B]) Run(doc D) (*RunSummary, error) {
	sum := &RunSummary{DuplicateOf: make(map[int]int)}
	seen := make(map[dedupKey]int)

	for idx, block := range p.extractor.Locator().LocateBlocks(doc) {
		out := p.extractor.Extract(idx, block)
		sum.Outcomes = append(sum.Outcomes, out)
		sum.Total++

		if out.Status == extract.StatusFailure {
			sum.Failures++
			continue
		}

		key := keyOf(out.Record)
		if first, dup := seen[key]; dup {
			sum.Duplicates++
			sum.DuplicateOf[idx] = first
			continue
		}
		seen[key] = idx

		if out.Status == extract.StatusSuccess {
			sum.Successes++
		} else {
			sum.Partial++
		}
		sum.Records = append(sum.Records, *out.Record)
	}

	if sum.Total == 0 {
		return nil, ErrNoListingsFound
	}
	return sum, nil
}

// dedupKey identifies a record for deduplication. Records without a price
// share empty amount and currency.
type dedupKey struct {
	name     string
	amount   string
	currency string
}

func keyOf(r *models.Record) dedupKey {
	k := dedupKey{name: r.Name}
	if r.Price != nil {
		k.amount = r.Price.Amount.String()
		k.currency = r.Price.Currency
	}
	return k
}
