package listing

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type blockFields struct {
	index  int
	fields map[Role]Fragment
}

func collect[D, B any](loc Locator[D, B], doc D) []blockFields {
	var out []blockFields
	for idx, block := range loc.LocateBlocks(doc) {
		bf := blockFields{index: idx, fields: make(map[Role]Fragment)}
		for _, role := range Roles {
			bf.fields[role] = loc.QueryField(block, role)
		}
		out = append(out, bf)
	}
	return out
}

func readFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "search.html"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func squash(s string) string { return strings.Join(strings.Fields(s), " ") }

// wantFixture is what every backend must resolve from testdata/search.html.
var wantFixture = []map[Role]string{
	{RoleName: "Wireless Mouse", RolePrice: "$19.99", RoleRating: "4.5 out of 5 stars"},
	{RoleName: "USB-C Hub", RolePrice: "1,299."},
	{RoleName: "Desk Lamp", RolePrice: "$39.99", RoleRating: "4.1 out of 5 stars"},
	{RolePrice: "$5.00", RoleRating: "3.9 out of 5 stars"},
}

func checkFixture(t *testing.T, got []blockFields) {
	t.Helper()
	if len(got) != len(wantFixture) {
		t.Fatalf("located %d blocks, want %d", len(got), len(wantFixture))
	}
	for i, bf := range got {
		if bf.index != i {
			t.Errorf("block %d has index %d", i, bf.index)
		}
		for _, role := range Roles {
			want, ok := wantFixture[i][role]
			frag := bf.fields[role]
			if !ok {
				if frag.Present {
					t.Errorf("block %d %s: got %q, want absent", i, role, frag.Text)
				}
				continue
			}
			if !frag.Present {
				t.Errorf("block %d %s: absent, want %q", i, role, want)
				continue
			}
			if squash(frag.Text) != want {
				t.Errorf("block %d %s = %q, want %q", i, role, squash(frag.Text), want)
			}
			if frag.Pattern == "" {
				t.Errorf("block %d %s: pattern not recorded", i, role)
			}
		}
	}
}

func TestCSSLocator_Fixture(t *testing.T) {
	loc, err := NewCSSLocator(AmazonSearch().CSS)
	if err != nil {
		t.Fatalf("NewCSSLocator: %v", err)
	}
	doc, err := ParseHTML(readFixture(t))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	checkFixture(t, collect[*goquery.Document, *goquery.Selection](loc, doc))
}

func TestXPathLocator_Fixture(t *testing.T) {
	loc, err := NewXPathLocator(AmazonSearch().XPath)
	if err != nil {
		t.Fatalf("NewXPathLocator: %v", err)
	}
	doc, err := ParseNodes(readFixture(t))
	if err != nil {
		t.Fatalf("ParseNodes: %v", err)
	}
	checkFixture(t, collect[*html.Node, *html.Node](loc, doc))
}

func TestCSSLocator_PriorityOrder(t *testing.T) {
	doc, err := ParseHTML(readFixture(t))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	loc, err := NewCSSLocator(AmazonSearch().CSS)
	if err != nil {
		t.Fatalf("NewCSSLocator: %v", err)
	}
	got := collect[*goquery.Document, *goquery.Selection](loc, doc)

	// The struck-through list price precedes the offer price in the markup,
	// but the first pattern excludes it.
	if p := got[0].fields[RolePrice].Pattern; p != AmazonSearch().CSS.Fields.Price[0] {
		t.Errorf("block 0 price resolved by %q, want first pattern", p)
	}
	// Only the whole-part span is present in block 1.
	if p := got[1].fields[RolePrice].Pattern; p != "span.a-price-whole" {
		t.Errorf("block 1 price resolved by %q, want span.a-price-whole", p)
	}
	// A blank first match falls through to the next pattern.
	if p := got[1].fields[RoleName].Pattern; p != "h2 span" {
		t.Errorf("block 1 name resolved by %q, want h2 span", p)
	}
}

func TestLocateBlocks_Reiterable(t *testing.T) {
	loc, err := NewCSSLocator(AmazonSearch().CSS)
	if err != nil {
		t.Fatalf("NewCSSLocator: %v", err)
	}
	doc, err := ParseHTML(readFixture(t))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}

	seq := loc.LocateBlocks(doc)
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 4 || b != 4 {
		t.Errorf("iterations yielded %d and %d blocks, want 4 and 4", a, b)
	}
}

func TestLocateBlocks_EarlyBreak(t *testing.T) {
	loc, err := NewXPathLocator(AmazonSearch().XPath)
	if err != nil {
		t.Fatalf("NewXPathLocator: %v", err)
	}
	doc, err := ParseNodes(readFixture(t))
	if err != nil {
		t.Fatalf("ParseNodes: %v", err)
	}

	seen := 0
	for range loc.LocateBlocks(doc) {
		seen++
		break
	}
	if seen != 1 {
		t.Errorf("seen = %d, want 1", seen)
	}
}

func TestLocateBlocks_NoBlocks(t *testing.T) {
	const page = `<html><body><div id="noResultsTitle">No results for "zzzz".</div></body></html>`

	css, _ := NewCSSLocator(AmazonSearch().CSS)
	doc, _ := ParseHTML(page)
	if got := collect[*goquery.Document, *goquery.Selection](css, doc); len(got) != 0 {
		t.Errorf("css located %d blocks, want 0", len(got))
	}

	xp, _ := NewXPathLocator(AmazonSearch().XPath)
	root, _ := ParseNodes(page)
	if got := collect[*html.Node, *html.Node](xp, root); len(got) != 0 {
		t.Errorf("xpath located %d blocks, want 0", len(got))
	}
}

func TestQueryField_NilBlock(t *testing.T) {
	css, _ := NewCSSLocator(AmazonSearch().CSS)
	if f := css.QueryField(nil, RoleName); f.Present {
		t.Error("css: nil block should yield an absent fragment")
	}
	xp, _ := NewXPathLocator(AmazonSearch().XPath)
	if f := xp.QueryField(nil, RoleName); f.Present {
		t.Error("xpath: nil block should yield an absent fragment")
	}
}

func TestDescribe(t *testing.T) {
	loc, _ := NewCSSLocator(AmazonSearch().CSS)
	doc, _ := ParseHTML(readFixture(t))

	var last string
	for _, block := range loc.LocateBlocks(doc) {
		last = loc.Describe(block)
	}
	if !strings.Contains(last, "5.00") {
		t.Errorf("snippet %q does not mention the block price", last)
	}
	if strings.Contains(last, "\n") {
		t.Errorf("snippet %q should be a single line", last)
	}
}

func TestSnippet_Truncates(t *testing.T) {
	long := "<p>" + strings.Repeat("word ", 200) + "</p>"
	got := snippet(newSnippetConverter(), long)
	if n := len([]rune(got)); n != snippetLimit+1 {
		t.Errorf("snippet length = %d runes, want %d", n, snippetLimit+1)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated snippet %q should end with an ellipsis", got)
	}
}

func TestNewCSSLocator_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
	}{
		{"missing block", Layout{Fields: FieldPatterns{Name: []string{"h2"}}}},
		{"missing name", Layout{Block: "div"}},
		{"bad block selector", Layout{Block: "div[", Fields: FieldPatterns{Name: []string{"h2"}}}},
		{"bad field selector", Layout{Block: "div", Fields: FieldPatterns{Name: []string{"h2 >>"}}}},
		{"bad exclude selector", Layout{Block: "div", Exclude: []string{":nope("}, Fields: FieldPatterns{Name: []string{"h2"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCSSLocator(tt.layout); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewXPathLocator_Invalid(t *testing.T) {
	layout := Layout{Block: "//div[", Fields: FieldPatterns{Name: []string{".//h2"}}}
	if _, err := NewXPathLocator(layout); err == nil {
		t.Error("expected error for malformed block expression")
	}
	layout = Layout{Block: "//div", Fields: FieldPatterns{Name: []string{".//h2[@"}}}
	if _, err := NewXPathLocator(layout); err == nil {
		t.Error("expected error for malformed field expression")
	}
}

func TestLoadLayout(t *testing.T) {
	const doc = `
name: shop-grid
css:
  block: "li.product"
  exclude: ["li.ad"]
  fields:
    name: ["h3"]
    price: [".price"]
`
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := LoadLayout(path)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	if set.Name != "shop-grid" {
		t.Errorf("Name = %q, want shop-grid", set.Name)
	}
	if set.CSS.Block != "li.product" || len(set.CSS.Exclude) != 1 {
		t.Errorf("CSS layout not decoded: %+v", set.CSS)
	}
	if set.XPath.Block != AmazonSearch().XPath.Block {
		t.Errorf("XPath layout should fall back to the default, got block %q", set.XPath.Block)
	}

	loc, err := NewCSSLocator(set.CSS)
	if err != nil {
		t.Fatalf("NewCSSLocator: %v", err)
	}
	page, _ := ParseHTML(`<ul><li class="product"><h3>Kettle</h3><span class="price">€24,90</span></li><li class="product ad"><h3>Ad</h3></li></ul>`)
	got := collect[*goquery.Document, *goquery.Selection](loc, page)
	if len(got) != 1 || got[0].fields[RoleName].Text != "Kettle" {
		t.Errorf("custom layout located %+v", got)
	}
	if got[0].fields[RoleRating].Present {
		t.Error("rating has no patterns and should be absent")
	}
}

func TestLoadLayout_Errors(t *testing.T) {
	if _, err := LoadLayout(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("css:\n  block: div\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLayout(path); err == nil {
		t.Error("expected error for layout without name patterns")
	}
}

func TestDocumentParseError(t *testing.T) {
	cause := errors.New("boom")
	var err error = &DocumentParseError{Backend: "css", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("DocumentParseError should unwrap to its cause")
	}
	var dpe *DocumentParseError
	if !errors.As(err, &dpe) || dpe.Backend != "css" {
		t.Errorf("errors.As failed: %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, want cause included", err.Error())
	}
}

func TestRole_String(t *testing.T) {
	for role, want := range map[Role]string{RoleName: "name", RolePrice: "price", RoleRating: "rating", Role(9): "role(9)"} {
		if got := role.String(); got != want {
			t.Errorf("Role(%d).String() = %q, want %q", int(role), got, want)
		}
	}
}
