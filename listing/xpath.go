package listing

import (
	"fmt"
	"iter"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// XPathLocator resolves a Layout written in XPath 1.0 against an
// x/net/html tree. Field patterns are evaluated relative to the block
// node, so they normally start with ".//".
type XPathLocator struct {
	block   *xpath.Expr
	exclude []*xpath.Expr
	fields  map[Role][]compiledXPath
	md      *converter.Converter
}

type compiledXPath struct {
	raw  string
	expr *xpath.Expr
}

// NewXPathLocator compiles every expression in the layout.
func NewXPathLocator(layout Layout) (*XPathLocator, error) {
	if err := layout.validate(); err != nil {
		return nil, fmt.Errorf("listing: xpath layout: %w", err)
	}

	block, err := xpath.Compile(layout.Block)
	if err != nil {
		return nil, fmt.Errorf("listing: block expression %q: %w", layout.Block, err)
	}

	l := &XPathLocator{
		block:  block,
		fields: make(map[Role][]compiledXPath, len(Roles)),
		md:     newSnippetConverter(),
	}
	for _, raw := range layout.Exclude {
		expr, err := xpath.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("listing: exclude expression %q: %w", raw, err)
		}
		l.exclude = append(l.exclude, expr)
	}
	for _, role := range Roles {
		for _, raw := range layout.Fields.For(role) {
			expr, err := xpath.Compile(raw)
			if err != nil {
				return nil, fmt.Errorf("listing: %s expression %q: %w", role, raw, err)
			}
			l.fields[role] = append(l.fields[role], compiledXPath{raw: raw, expr: expr})
		}
	}
	return l, nil
}

// ParseNodes builds an x/net/html tree from raw markup.
func ParseNodes(rawHTML string) (*html.Node, error) {
	doc, err := htmlquery.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &DocumentParseError{Backend: "xpath", Err: err}
	}
	return doc, nil
}

// LocateBlocks yields the non-excluded listing blocks in document order.
func (l *XPathLocator) LocateBlocks(doc *html.Node) iter.Seq2[int, *html.Node] {
	return func(yield func(int, *html.Node) bool) {
		if doc == nil {
			return
		}
		idx := 0
		for _, n := range htmlquery.QuerySelectorAll(doc, l.block) {
			if l.excluded(n) {
				continue
			}
			if !yield(idx, n) {
				return
			}
			idx++
		}
	}
}

func (l *XPathLocator) excluded(n *html.Node) bool {
	for _, expr := range l.exclude {
		if htmlquery.QuerySelector(n, expr) != nil {
			return true
		}
	}
	return false
}

// QueryField returns the inner text of the first node matched by the first
// role expression that yields non-blank text.
func (l *XPathLocator) QueryField(block *html.Node, role Role) Fragment {
	if block == nil {
		return Absent()
	}
	for _, p := range l.fields[role] {
		for _, n := range htmlquery.QuerySelectorAll(block, p.expr) {
			text := htmlquery.InnerText(n)
			if strings.TrimSpace(text) != "" {
				return Fragment{Text: text, Present: true, Pattern: p.raw}
			}
		}
	}
	return Absent()
}

// Describe renders a short Markdown excerpt of the block.
func (l *XPathLocator) Describe(block *html.Node) string {
	if block == nil {
		return ""
	}
	return snippet(l.md, htmlquery.OutputHTML(block, true))
}
