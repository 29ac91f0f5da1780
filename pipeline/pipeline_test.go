package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/extract"
	"github.com/use-agent/shelfscan/listing"
	"github.com/use-agent/shelfscan/normalize"
	"golang.org/x/net/html"
)

type item struct {
	asin   string
	name   string
	price  string
	rating string
}

// page renders items as Amazon search result blocks. Empty fields are
// left out of the markup.
func page(items ...item) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="s-main-slot">`)
	for _, it := range items {
		fmt.Fprintf(&b, `<div data-component-type="s-search-result" data-asin="%s">`, it.asin)
		if it.name != "" {
			fmt.Fprintf(&b, `<h2><a href="/dp/%s"><span>%s</span></a></h2>`, it.asin, it.name)
		}
		if it.price != "" {
			fmt.Fprintf(&b, `<span class="a-price"><span class="a-offscreen">%s</span></span>`, it.price)
		}
		if it.rating != "" {
			fmt.Fprintf(&b, `<i class="a-icon"><span class="a-icon-alt">%s</span></i>`, it.rating)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func cssPipeline(t *testing.T) *Pipeline[*goquery.Document, *goquery.Selection] {
	t.Helper()
	loc, err := listing.NewCSSLocator(listing.AmazonSearch().CSS)
	if err != nil {
		t.Fatalf("NewCSSLocator: %v", err)
	}
	n, err := normalize.New()
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}
	return New(extract.New[*goquery.Document, *goquery.Selection](loc, n))
}

func xpathPipeline(t *testing.T) *Pipeline[*html.Node, *html.Node] {
	t.Helper()
	loc, err := listing.NewXPathLocator(listing.AmazonSearch().XPath)
	if err != nil {
		t.Fatalf("NewXPathLocator: %v", err)
	}
	n, err := normalize.New()
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}
	return New(extract.New[*html.Node, *html.Node](loc, n))
}

func runCSS(t *testing.T, markup string) (*RunSummary, error) {
	t.Helper()
	doc, err := listing.ParseHTML(markup)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	return cssPipeline(t).Run(doc)
}

// scenario: full data, missing rating, missing name, duplicate of the
// first block, unparseable price.
var scenario = page(
	item{asin: "A1", name: "Widget A", price: "$10.00", rating: "4.5 out of 5 stars"},
	item{asin: "A2", name: "Widget B", price: "$12.00"},
	item{asin: "A3", price: "$3.00", rating: "4.0 out of 5 stars"},
	item{asin: "A4", name: "Widget  A", price: "$10", rating: "4.1 out of 5 stars"},
	item{asin: "A5", name: "Widget C", price: "Currently unavailable", rating: "3.5 out of 5 stars"},
)

func checkScenario(t *testing.T, sum *RunSummary) {
	t.Helper()
	if sum.Total != 5 {
		t.Errorf("Total = %d, want 5", sum.Total)
	}
	if sum.Successes != 1 || sum.Partial != 2 || sum.Failures != 1 || sum.Duplicates != 1 {
		t.Errorf("counts S=%d P=%d F=%d D=%d, want S=1 P=2 F=1 D=1",
			sum.Successes, sum.Partial, sum.Failures, sum.Duplicates)
	}
	if got := sum.Successes + sum.Partial + sum.Failures + sum.Duplicates; got != sum.Total {
		t.Errorf("counts sum to %d, total is %d", got, sum.Total)
	}

	var names []string
	for _, r := range sum.Records {
		names = append(names, r.Name)
	}
	if want := []string{"Widget A", "Widget B", "Widget C"}; !reflect.DeepEqual(names, want) {
		t.Errorf("records = %v, want %v", names, want)
	}
	if r := sum.Records[1]; r.Rating != nil || r.Price == nil {
		t.Errorf("Widget B = %+v, want price and no rating", r)
	}
	if r := sum.Records[2]; r.Price != nil || r.Rating == nil {
		t.Errorf("Widget C = %+v, want rating and no price", r)
	}
	if first, ok := sum.DuplicateOf[3]; !ok || first != 0 {
		t.Errorf("DuplicateOf = %v, want block 3 to duplicate block 0", sum.DuplicateOf)
	}
	if len(sum.Outcomes) != 5 {
		t.Errorf("Outcomes = %d, want one per block", len(sum.Outcomes))
	}
	failed := sum.Failed()
	if len(failed) != 1 || failed[0].Index != 2 || !errors.Is(failed[0].Reason, extract.ErrNoName) {
		t.Errorf("Failed() = %+v, want block 2 with ErrNoName", failed)
	}
}

func TestRun_Scenario_CSS(t *testing.T) {
	sum, err := runCSS(t, scenario)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	checkScenario(t, sum)
}

func TestRun_Scenario_XPath(t *testing.T) {
	root, err := listing.ParseNodes(scenario)
	if err != nil {
		t.Fatalf("ParseNodes: %v", err)
	}
	sum, err := xpathPipeline(t).Run(root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	checkScenario(t, sum)
}

func TestRun_Idempotent(t *testing.T) {
	doc, err := listing.ParseHTML(scenario)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	p := cssPipeline(t)

	a, errA := p.Run(doc)
	b, errB := p.Run(doc)
	if errA != nil || errB != nil {
		t.Fatalf("Run errors: %v, %v", errA, errB)
	}
	if a.Total != b.Total || a.Successes != b.Successes || a.Partial != b.Partial ||
		a.Failures != b.Failures || a.Duplicates != b.Duplicates {
		t.Errorf("counts differ between runs: %+v vs %+v", a, b)
	}
	if !reflect.DeepEqual(a.Records, b.Records) {
		t.Errorf("records differ between runs")
	}
	if !reflect.DeepEqual(a.DuplicateOf, b.DuplicateOf) {
		t.Errorf("duplicate map differs between runs")
	}
}

func TestRun_PreservesOrder(t *testing.T) {
	var items []item
	var want []string
	for i := range 12 {
		name := fmt.Sprintf("Product %02d", 12-i)
		items = append(items, item{asin: fmt.Sprintf("P%d", i), name: name, price: fmt.Sprintf("$%d.99", i+1)})
		want = append(want, name)
	}
	sum, err := runCSS(t, page(items...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var got []string
	for _, r := range sum.Records {
		got = append(got, r.Name)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestRun_Dedup(t *testing.T) {
	tests := []struct {
		name      string
		items     []item
		wantNames []string
		wantDups  int
	}{
		{
			name: "keeps first position",
			items: []item{
				{asin: "1", name: "Lamp", price: "$20.00"},
				{asin: "2", name: "Desk", price: "$90.00"},
				{asin: "3", name: "Lamp", price: "$20"},
			},
			wantNames: []string{"Lamp", "Desk"},
			wantDups:  1,
		},
		{
			name: "different currency is distinct",
			items: []item{
				{asin: "1", name: "Lamp", price: "$20.00"},
				{asin: "2", name: "Lamp", price: "€20.00"},
			},
			wantNames: []string{"Lamp", "Lamp"},
		},
		{
			name: "different amount is distinct",
			items: []item{
				{asin: "1", name: "Lamp", price: "$20.00"},
				{asin: "2", name: "Lamp", price: "$19.00"},
			},
			wantNames: []string{"Lamp", "Lamp"},
		},
		{
			name: "both without price collapse",
			items: []item{
				{asin: "1", name: "Lamp"},
				{asin: "2", name: "Lamp", rating: "4.0"},
			},
			wantNames: []string{"Lamp"},
			wantDups:  1,
		},
		{
			name: "rating does not affect identity",
			items: []item{
				{asin: "1", name: "Lamp", price: "$5", rating: "4.0"},
				{asin: "2", name: "Lamp", price: "$5", rating: "2.0"},
			},
			wantNames: []string{"Lamp"},
			wantDups:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := runCSS(t, page(tt.items...))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			var got []string
			for _, r := range sum.Records {
				got = append(got, r.Name)
			}
			if !reflect.DeepEqual(got, tt.wantNames) {
				t.Errorf("records = %v, want %v", got, tt.wantNames)
			}
			if sum.Duplicates != tt.wantDups {
				t.Errorf("Duplicates = %d, want %d", sum.Duplicates, tt.wantDups)
			}
		})
	}
}

func TestRun_NoListingsFound(t *testing.T) {
	sum, err := runCSS(t, `<html><body><p>No results.</p></body></html>`)
	if !errors.Is(err, ErrNoListingsFound) {
		t.Fatalf("err = %v, want ErrNoListingsFound", err)
	}
	if sum != nil {
		t.Errorf("summary = %+v, want nil", sum)
	}
}

func TestRun_OnlyExcludedBlocks(t *testing.T) {
	markup := `<div data-component-type="s-search-result" data-asin=""><h2>Sponsored</h2></div>` +
		`<div data-component-type="s-search-result" data-asin="X" class="AdHolder"><h2>Ad</h2></div>`
	if _, err := runCSS(t, markup); !errors.Is(err, ErrNoListingsFound) {
		t.Errorf("err = %v, want ErrNoListingsFound", err)
	}
}

func TestRun_AllFailuresStillCompletes(t *testing.T) {
	sum, err := runCSS(t, page(item{asin: "1", price: "$1"}, item{asin: "2", rating: "4.0"}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 2 || sum.Failures != 2 || len(sum.Records) != 0 {
		t.Errorf("summary = %+v, want 2 failures and no records", sum)
	}
}
