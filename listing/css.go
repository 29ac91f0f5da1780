package listing

import (
	"fmt"
	"iter"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// CSSLocator resolves a Layout written in CSS selectors against goquery
// documents. Selectors are compiled once; the locator holds no per-run
// state and is safe for concurrent use.
type CSSLocator struct {
	block   cascadia.Selector
	exclude []cascadia.Selector
	fields  map[Role][]compiledCSS
	md      *converter.Converter
}

type compiledCSS struct {
	raw string
	sel cascadia.Selector
}

// NewCSSLocator compiles every selector in the layout.
func NewCSSLocator(layout Layout) (*CSSLocator, error) {
	if err := layout.validate(); err != nil {
		return nil, fmt.Errorf("listing: css layout: %w", err)
	}

	block, err := cascadia.Compile(layout.Block)
	if err != nil {
		return nil, fmt.Errorf("listing: block selector %q: %w", layout.Block, err)
	}

	l := &CSSLocator{
		block:  block,
		fields: make(map[Role][]compiledCSS, len(Roles)),
		md:     newSnippetConverter(),
	}
	for _, raw := range layout.Exclude {
		sel, err := cascadia.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("listing: exclude selector %q: %w", raw, err)
		}
		l.exclude = append(l.exclude, sel)
	}
	for _, role := range Roles {
		for _, raw := range layout.Fields.For(role) {
			sel, err := cascadia.Compile(raw)
			if err != nil {
				return nil, fmt.Errorf("listing: %s selector %q: %w", role, raw, err)
			}
			l.fields[role] = append(l.fields[role], compiledCSS{raw: raw, sel: sel})
		}
	}
	return l, nil
}

// ParseHTML builds a goquery document from raw markup.
func ParseHTML(rawHTML string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &DocumentParseError{Backend: "css", Err: err}
	}
	return doc, nil
}

// LocateBlocks yields the non-excluded listing blocks in document order.
func (l *CSSLocator) LocateBlocks(doc *goquery.Document) iter.Seq2[int, *goquery.Selection] {
	return func(yield func(int, *goquery.Selection) bool) {
		if doc == nil {
			return
		}
		idx := 0
		doc.FindMatcher(l.block).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if l.excluded(s) {
				return true
			}
			ok := yield(idx, s)
			idx++
			return ok
		})
	}
}

func (l *CSSLocator) excluded(s *goquery.Selection) bool {
	node := s.Get(0)
	for _, sel := range l.exclude {
		if sel.Match(node) {
			return true
		}
	}
	return false
}

// QueryField returns the text of the first element matched by the first
// role pattern that yields non-blank text.
func (l *CSSLocator) QueryField(block *goquery.Selection, role Role) Fragment {
	if block == nil {
		return Absent()
	}
	for _, p := range l.fields[role] {
		found := block.FindMatcher(p.sel)
		for i := range found.Nodes {
			text := found.Eq(i).Text()
			if strings.TrimSpace(text) != "" {
				return Fragment{Text: text, Present: true, Pattern: p.raw}
			}
		}
	}
	return Absent()
}

// Describe renders a short Markdown excerpt of the block.
func (l *CSSLocator) Describe(block *goquery.Selection) string {
	if block == nil {
		return ""
	}
	h, err := goquery.OuterHtml(block)
	if err != nil {
		return ""
	}
	return snippet(l.md, h)
}
