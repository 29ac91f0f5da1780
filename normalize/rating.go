package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ratingToken keeps a leading minus so negative scores fail the range check.
var ratingToken = regexp.MustCompile(`[-−]?\d+(?:[.,]\d+)?`)

var ratingMarks = strings.NewReplacer("−", "-", ",", ".")

// Rating extracts the leading score from text such as
// "4.3 out of 5 stars", "4,3 von 5 Sternen" or "4.3".
//
// Values outside [0, scale] are rejected rather than clamped.
func (n *Normalizer) Rating(text string) (float64, error) {
	s := collapse(norm.NFKC.String(text))
	tok := ratingToken.FindString(s)
	if tok == "" {
		return 0, fmt.Errorf("%w: no score in %q", ErrUnparseableRating, text)
	}

	v, err := strconv.ParseFloat(ratingMarks.Replace(tok), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrUnparseableRating, text, err)
	}
	if v < 0 || v > n.ratingScale {
		return 0, fmt.Errorf("%w: %v outside [0, %v]", ErrUnparseableRating, v, n.ratingScale)
	}
	return v, nil
}
