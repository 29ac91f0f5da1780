package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/use-agent/shelfscan/models"
	"golang.org/x/text/currency"
	"golang.org/x/text/unicode/norm"
)

// numericToken matches one number including grouping and decimal marks.
// A token always starts and ends with a digit. Space grouping ("1 234,56",
// "1 234.56", after NFKC folds NBSP) is only accepted in groups of exactly
// three digits.
var numericToken = regexp.MustCompile(`\d{1,3}(?: \d{3})+(?:[.,]\d+)?\b|\d(?:[\d.,']*\d)?`)

// isoCode matches a standalone three-letter code such as "EUR".
var isoCode = regexp.MustCompile(`\b[A-Z]{3}\b`)

type symbol struct {
	text string
	code string
}

// builtinSymbols is sorted longest-first by sortSymbols so that "US$"
// wins over "$".
var builtinSymbols = []symbol{
	{"US$", "USD"},
	{"CA$", "CAD"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"AU$", "AUD"},
	{"NZ$", "NZD"},
	{"HK$", "HKD"},
	{"S$", "SGD"},
	{"R$", "BRL"},
	{"MX$", "MXN"},
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"₹", "INR"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₩", "KRW"},
	{"₽", "RUB"},
	{"₺", "TRY"},
	{"₫", "VND"},
	{"₱", "PHP"},
	{"zł", "PLN"},
	{"kr", "SEK"},
	{"CHF", "CHF"},
}

func sortSymbols(s []symbol) {
	sort.SliceStable(s, func(i, j int) bool { return len(s[i].text) > len(s[j].text) })
}

// Price extracts the current price from text such as "$19.99",
// "₹1,299.00" or "1.234,56 €".
//
// When several numbers are present (a struck-through list price next to
// the offer price) the first numeric token in reading order is taken as
// the current price. The currency is the marker nearest to that token;
// when the text carries none the configured default currency is used.
func (n *Normalizer) Price(text string) (models.Price, error) {
	s := collapse(norm.NFKC.String(text))
	loc := numericToken.FindStringIndex(s)
	if loc == nil {
		return models.Price{}, fmt.Errorf("%w: no numeric body in %q", ErrUnparseablePrice, text)
	}

	if n.negative(s[:loc[0]]) {
		return models.Price{}, fmt.Errorf("%w: negative amount in %q", ErrUnparseablePrice, text)
	}

	amount, err := parseAmount(s[loc[0]:loc[1]])
	if err != nil {
		return models.Price{}, fmt.Errorf("%w: %q: %v", ErrUnparseablePrice, text, err)
	}

	code := n.currencyNear(s, loc[0], loc[1])
	if code == "" {
		code = n.defaultCurrency
	}
	return models.Price{Amount: amount, Currency: code}, nil
}

// negative reports whether the text before a numeric token ends in a minus
// sign, allowing one currency marker in between ("-5", "-$5", "EUR -5").
func (n *Normalizer) negative(prefix string) bool {
	p := strings.TrimRightFunc(prefix, unicode.IsSpace)
	for _, sym := range n.symbols {
		if strings.HasSuffix(p, sym.text) {
			p = strings.TrimRightFunc(strings.TrimSuffix(p, sym.text), unicode.IsSpace)
			break
		}
	}
	if ms := isoCode.FindAllStringIndex(p, -1); len(ms) > 0 && ms[len(ms)-1][1] == len(p) {
		p = strings.TrimRightFunc(p[:ms[len(ms)-1][0]], unicode.IsSpace)
	}
	return strings.HasSuffix(p, "-") || strings.HasSuffix(p, "−")
}

// parseAmount resolves grouping and decimal marks in one numeric token.
//
//   - both '.' and ',' present: the rightmost one is the decimal mark
//   - one mark repeated: it groups thousands
//   - one mark once, followed by exactly three digits: it groups thousands
//     ("1,299"), unless the integer part is 0 ("0.500")
//   - otherwise it is the decimal mark
func parseAmount(tok string) (decimal.Decimal, error) {
	tok = strings.NewReplacer("'", "", " ", "").Replace(tok)

	lastDot := strings.LastIndexByte(tok, '.')
	lastComma := strings.LastIndexByte(tok, ',')

	var body string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			body = strings.ReplaceAll(tok, ",", "")
		} else {
			body = strings.ReplaceAll(strings.ReplaceAll(tok, ".", ""), ",", ".")
		}
	case lastDot >= 0:
		body = resolveSingleMark(tok, '.')
	case lastComma >= 0:
		body = resolveSingleMark(tok, ',')
	default:
		body = tok
	}
	return decimal.NewFromString(body)
}

func resolveSingleMark(tok string, mark byte) string {
	m := string(mark)
	if strings.Count(tok, m) > 1 {
		return strings.ReplaceAll(tok, m, "")
	}
	i := strings.IndexByte(tok, mark)
	intPart, frac := tok[:i], tok[i+1:]
	if len(frac) == 3 && strings.TrimLeft(intPart, "0") != "" {
		return intPart + frac
	}
	return intPart + "." + frac
}

// currencyNear returns the ISO code of the currency marker closest to the
// numeric token spanning s[start:end], or "" when there is none.
func (n *Normalizer) currencyNear(s string, start, end int) string {
	best, bestDist := "", -1
	consider := func(code string, at, width int) {
		var dist int
		switch {
		case at+width <= start:
			dist = start - (at + width)
		case at >= end:
			dist = at - end
		default:
			return
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = code, dist
		}
	}

	for _, m := range isoCode.FindAllStringIndex(s, -1) {
		if unit, err := currency.ParseISO(s[m[0]:m[1]]); err == nil {
			consider(unit.String(), m[0], m[1]-m[0])
		}
	}
	for _, sym := range n.symbols {
		for off := 0; off < len(s); {
			i := strings.Index(s[off:], sym.text)
			if i < 0 {
				break
			}
			at := off + i
			if isLetterSymbol(sym.text) && !wordBounded(s, at, len(sym.text)) {
				off = at + len(sym.text)
				continue
			}
			consider(sym.code, at, len(sym.text))
			off = at + len(sym.text)
		}
	}
	return best
}

func isLetterSymbol(t string) bool {
	for _, r := range t {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// wordBounded reports whether s[at:at+width] is not glued to other letters,
// so "kr" matches "99 kr" but not "kroner" or "Turkey".
func wordBounded(s string, at, width int) bool {
	if at > 0 {
		r := lastRune(s[:at])
		if unicode.IsLetter(r) {
			return false
		}
	}
	if at+width < len(s) {
		r := []rune(s[at+width:])[0]
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}
