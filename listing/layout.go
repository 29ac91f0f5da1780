package listing

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layout is the set of structural patterns describing one site's listing
// markup for a single query backend.
type Layout struct {
	// Block selects one element per candidate listing entry.
	Block string `yaml:"block"`

	// Exclude marks blocks that are structurally not products (sponsored
	// placeholders, "related searches" widgets). A block matching any of
	// these patterns is skipped.
	Exclude []string `yaml:"exclude,omitempty"`

	// Fields lists prioritized patterns per role, relative to the block.
	Fields FieldPatterns `yaml:"fields"`
}

// FieldPatterns holds the prioritized patterns for each role.
type FieldPatterns struct {
	Name   []string `yaml:"name"`
	Price  []string `yaml:"price,omitempty"`
	Rating []string `yaml:"rating,omitempty"`
}

// For returns the patterns for a role.
func (f FieldPatterns) For(r Role) []string {
	switch r {
	case RoleName:
		return f.Name
	case RolePrice:
		return f.Price
	case RoleRating:
		return f.Rating
	}
	return nil
}

// LayoutSet pairs the CSS and XPath renditions of one site layout.
type LayoutSet struct {
	Name  string `yaml:"name"`
	CSS   Layout `yaml:"css"`
	XPath Layout `yaml:"xpath"`
}

// AmazonSearch is the layout of an Amazon search results page.
func AmazonSearch() LayoutSet {
	return LayoutSet{
		Name: "amazon-search",
		CSS: Layout{
			Block: `div[data-component-type="s-search-result"]`,
			Exclude: []string{
				`[data-asin=""]`,
				`.AdHolder`,
			},
			Fields: FieldPatterns{
				Name: []string{
					`h2 a span`,
					`h2 span`,
					`h2`,
				},
				Price: []string{
					`span.a-price:not(.a-text-price) span.a-offscreen`,
					`span.a-price span.a-offscreen`,
					`span.a-price-whole`,
				},
				Rating: []string{
					`span.a-icon-alt`,
				},
			},
		},
		XPath: Layout{
			Block: `//div[@data-component-type='s-search-result']`,
			Exclude: []string{
				`self::*[@data-asin='']`,
				`self::*[` + hasClass("AdHolder") + `]`,
			},
			Fields: FieldPatterns{
				Name: []string{
					`.//h2//a//span`,
					`.//h2//span`,
					`.//h2`,
				},
				Price: []string{
					`.//span[` + hasClass("a-price") + ` and not(` + hasClass("a-text-price") + `)]//span[` + hasClass("a-offscreen") + `]`,
					`.//span[` + hasClass("a-price") + `]//span[` + hasClass("a-offscreen") + `]`,
					`.//span[` + hasClass("a-price-whole") + `]`,
				},
				Rating: []string{
					`.//span[` + hasClass("a-icon-alt") + `]`,
				},
			},
		},
	}
}

// hasClass is the XPath test for one whitespace-separated class token,
// matching what a CSS class selector matches.
func hasClass(name string) string {
	return `contains(concat(' ', normalize-space(@class), ' '), ' ` + name + ` ')`
}

// LoadLayout reads a LayoutSet from a YAML file. A backend section left
// empty in the file falls back to the Amazon search layout.
func LoadLayout(path string) (LayoutSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LayoutSet{}, fmt.Errorf("listing: read layout %s: %w", path, err)
	}

	var set LayoutSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return LayoutSet{}, fmt.Errorf("listing: decode layout %s: %w", path, err)
	}

	def := AmazonSearch()
	if set.CSS.Block == "" {
		set.CSS = def.CSS
	}
	if set.XPath.Block == "" {
		set.XPath = def.XPath
	}
	if set.Name == "" {
		set.Name = path
	}

	if err := set.CSS.validate(); err != nil {
		return LayoutSet{}, fmt.Errorf("listing: layout %s css: %w", path, err)
	}
	if err := set.XPath.validate(); err != nil {
		return LayoutSet{}, fmt.Errorf("listing: layout %s xpath: %w", path, err)
	}
	return set, nil
}

func (l Layout) validate() error {
	if l.Block == "" {
		return errors.New("block pattern is required")
	}
	if len(l.Fields.Name) == 0 {
		return errors.New("at least one name pattern is required")
	}
	return nil
}
