// Package pricing turns raw delivery notifications into money.
package pricing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Go's \b is ASCII-only, so Cyrillic keywords get explicit letter/digit bounds.
var (
	mkRe      = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])мк(?:$|[^\p{L}\p{N}_])`)
	gabQtyRe  = regexp.MustCompile(`(\d+)\s*\*?\s*габ`)
	gabBareRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])габ(?:$|[^\p{L}\p{N}_])`)
	cashRe    = regexp.MustCompile(`\d+[.,]?\d*`)
)

// ColorPrice is one oversize-category keyword with its fixed surcharge.
// Declaration order matters: triggers are reported in table order.
type ColorPrice struct {
	Name  string
	Price decimal.Decimal
}

// Table holds the fixed price list used by ParseEarnings.
type Table struct {
	Base    decimal.Decimal // single "+" delivery inside the city
	MK      decimal.Decimal // "мк" modifier surcharge
	GabUnit decimal.Decimal // per-unit price of an oversize ("габ") item
	Colors  []ColorPrice
}

// DefaultTable returns the production price list.
func DefaultTable() *Table {
	return &Table{
		Base:    decimal.NewFromFloat(10.00),
		MK:      decimal.NewFromFloat(5.00),
		GabUnit: decimal.NewFromFloat(7.00),
		Colors: []ColorPrice{
			{"синяя", decimal.NewFromFloat(8.00)},
			{"красная", decimal.NewFromFloat(16.00)},
			{"оранжевая", decimal.NewFromFloat(25.00)},
			{"салатовая", decimal.NewFromFloat(33.00)},
			{"коричневая", decimal.NewFromFloat(42.00)},
			{"светло-серая", decimal.NewFromFloat(50.00)},
			{"розовая", decimal.NewFromFloat(49.00)},
			{"темно-серая", decimal.NewFromFloat(67.00)},
			{"голубая", decimal.NewFromFloat(76.00)},
		},
	}
}

type match struct {
	amount decimal.Decimal
	tag    string
}

// rule inspects the case-folded text and contributes zero or more matches.
// full is the whole message, after is the part following the first "+":
// only "after" is scanned for modifiers so an address prefix cannot trip them.
type rule func(full, after string) []match

func (t *Table) rules() []rule {
	return []rule{
		t.baseRule,
		t.mkRule,
		t.colorRule,
		t.gabQtyRule,
		t.gabBareRule,
	}
}

// ParseEarnings computes the earned amount for one notification and the list
// of pricing triggers that produced it, in discovery order. Text without a
// "+" is not a delivery notification: the result is (0, nil).
func (t *Table) ParseEarnings(text string) (decimal.Decimal, []string) {
	lowered := strings.ToLower(text)
	if !strings.Contains(lowered, "+") {
		return decimal.Zero, nil
	}
	after := lowered[strings.Index(lowered, "+")+1:]

	total := decimal.Zero
	var triggers []string
	for _, r := range t.rules() {
		for _, m := range r(lowered, after) {
			total = total.Add(m.amount)
			triggers = append(triggers, m.tag)
		}
	}
	return total.Round(2), triggers
}

func (t *Table) baseRule(full, _ string) []match {
	if strings.Contains(full, "++") {
		return []match{{t.Base.Mul(decimal.NewFromInt(2)), "++"}}
	}
	return []match{{t.Base, "+"}}
}

func (t *Table) mkRule(_, after string) []match {
	if mkRe.MatchString(after) {
		return []match{{t.MK, "мк"}}
	}
	return nil
}

func (t *Table) colorRule(_, after string) []match {
	var ms []match
	for _, c := range t.Colors {
		if strings.Contains(after, c.Name) {
			ms = append(ms, match{c.Price, c.Name})
		}
	}
	return ms
}

func (t *Table) gabQtyRule(_, after string) []match {
	var ms []match
	for _, sub := range gabQtyRe.FindAllStringSubmatch(after, -1) {
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			continue
		}
		ms = append(ms, match{t.GabUnit.Mul(decimal.NewFromInt(int64(n))), fmt.Sprintf("%dгаб", n)})
	}
	return ms
}

// gabBareRule fires only when no numeric-prefixed габ match exists anywhere.
func (t *Table) gabBareRule(_, after string) []match {
	if gabBareRe.MatchString(after) && !gabQtyRe.MatchString(after) {
		return []match{{t.GabUnit, "габ"}}
	}
	return nil
}

// ParseCash extracts the declared cash amount: the first numeric token found
// anywhere in the text, "," normalized to ".". Returns 0 when no token parses.
//
// Known weakness, preserved for compatibility: the search is unanchored, so a
// leading house number ("Минская 12, +мк 15р") is captured instead of the
// intended figure. Do not "fix" this without changing the notification format.
func ParseCash(text string) decimal.Decimal {
	tok := cashRe.FindString(text)
	if tok == "" {
		return decimal.Zero
	}
	tok = strings.TrimSuffix(strings.ReplaceAll(tok, ",", "."), ".")
	d, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero
	}
	return d
}
