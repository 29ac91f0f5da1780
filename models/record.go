package models

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Price is a monetary amount with its ISO 4217 currency code.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Record is one product extracted from a listing page.
//
// Name is always non-empty. Price and Rating are nil when the listing
// block did not carry a usable value for them.
type Record struct {
	Name   string   `json:"name"`
	Price  *Price   `json:"price,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

// CSVHeader is the column layout written by the exporter.
var CSVHeader = []string{"name", "price_amount", "price_currency", "rating"}

// CSVRow renders the record as one row matching CSVHeader. Absent fields
// are written as empty cells.
func (r Record) CSVRow() []string {
	row := []string{r.Name, "", "", ""}
	if r.Price != nil {
		row[1] = r.Price.Amount.String()
		row[2] = r.Price.Currency
	}
	if r.Rating != nil {
		row[3] = strconv.FormatFloat(*r.Rating, 'f', -1, 64)
	}
	return row
}
