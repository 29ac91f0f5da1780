// Package listing locates repeated product blocks inside a parsed search
// results page and resolves field fragments (name, price, rating) inside
// each block.
//
// Traversal is abstracted behind Locator so that extraction logic does not
// depend on the parsing backend. Two adapters are provided: CSSLocator
// (goquery/cascadia) and XPathLocator (htmlquery/xpath).
package listing

import (
	"fmt"
	"iter"
)

// Role is the semantic slot a fragment fills.
type Role int

const (
	RoleName Role = iota
	RolePrice
	RoleRating
)

// Roles lists every field role in extraction order.
var Roles = []Role{RoleName, RolePrice, RoleRating}

func (r Role) String() string {
	switch r {
	case RoleName:
		return "name"
	case RolePrice:
		return "price"
	case RoleRating:
		return "rating"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText lets roles appear as plain strings in JSON and logs.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Fragment is the raw text found for one role inside one block.
// Present is false when no pattern for the role matched.
type Fragment struct {
	Text    string
	Present bool
	// Pattern is the layout pattern that produced the text.
	Pattern string
}

// Absent returns the fragment for a role with no matching pattern.
func Absent() Fragment { return Fragment{} }

// Locator is the traversal capability the extractor depends on.
//
// D is the backend's parsed document and B its handle to one listing
// block. LocateBlocks yields blocks in document order together with their
// zero-based index; structurally excluded entries (sponsored placeholders,
// widgets) are skipped and do not consume an index. The sequence may be
// iterated more than once over the same document.
//
// QueryField tries the role's patterns in priority order and returns the
// first one that matches non-blank text. It never fails: a role with no
// match yields an absent fragment.
type Locator[D, B any] interface {
	LocateBlocks(doc D) iter.Seq2[int, B]
	QueryField(block B, role Role) Fragment
}

// Describer is implemented by locators that can render a short, human
// readable excerpt of a block for diagnostics.
type Describer[B any] interface {
	Describe(block B) string
}

// DocumentParseError reports that raw markup could not be turned into a
// document tree. It is surfaced unchanged to callers of the pipeline.
type DocumentParseError struct {
	Backend string
	Err     error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("listing: %s parse failed: %v", e.Backend, e.Err)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }
