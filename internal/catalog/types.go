// Package catalog holds the repair-price catalog: brands, models, issues
// and the price matrix, managed as one document by the admin area and read
// by the quote flow.
package catalog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PriceType tags how a price entry is expressed. Variants are preserved
// as-is; a range is never collapsed to a single number.
type PriceType string

const (
	PriceFixed PriceType = "fixed"
	PriceRange PriceType = "range"
	PriceFrom  PriceType = "from"
	PriceTBD   PriceType = "tbd"
)

type Brand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Model struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Brand string `json:"brand"`
}

type Issue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Price is one cell of the model x issue price matrix. Which numeric
// fields are meaningful depends on Type.
type Price struct {
	ModelID      string    `json:"modelId"`
	IssueID      string    `json:"issueId"`
	Type         PriceType `json:"type"`
	Price        *int      `json:"price,omitempty"`
	Min          *int      `json:"min,omitempty"`
	Max          *int      `json:"max,omitempty"`
	From         *int      `json:"from,omitempty"`
	WarrantyDays int       `json:"warrantyDays"`
	ETA          string    `json:"eta"`
	Notes        string    `json:"notes"`
}

// Data is the whole catalog document, stored and replaced as a unit.
type Data struct {
	Brand          string  `json:"brand"`
	Currency       string  `json:"currency"`
	WhatsAppNumber string  `json:"whatsappNumber"`
	Disclaimer     string  `json:"disclaimer"`
	Brands         []Brand `json:"brands"`
	Models         []Model `json:"models"`
	Issues         []Issue `json:"issues"`
	Prices         []Price `json:"prices"`
}

// Quote is the verified-user view of one model+issue price entry.
type Quote struct {
	Brand          string `json:"brand"`
	Model          Model  `json:"model"`
	Issue          Issue  `json:"issue"`
	Pricing        Price  `json:"pricing"`
	Display        string `json:"display"`
	Currency       string `json:"currency"`
	Disclaimer     string `json:"disclaimer"`
	WhatsAppNumber string `json:"whatsappNumber"`
}

// Splits a model name around its generation number, e.g.
// "iPhone 15 Pro Max" -> "iPhone", 15, "Pro Max". Names without a number
// fall back to plain string order.
var modelNameRe = regexp.MustCompile(`^(.*?)(\d+)(\D*)$`)

// suffixRank orders marketing tiers within one numbered generation:
// base < mini < Plus < Pro < Pro Max/Ultra < anything else.
func suffixRank(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0
	case "mini":
		return 1
	case "plus", "+":
		return 2
	case "pro":
		return 3
	case "pro max", "ultra":
		return 4
	default:
		return 5
	}
}

// CompareModelNames orders model names naturally: shared prefix, then
// generation number numerically, then marketing suffix rank, so
// "iPhone 11" < "iPhone 12" < "iPhone 15 Pro" < "iPhone 15 Pro Max".
func CompareModelNames(a, b string) int {
	ma := modelNameRe.FindStringSubmatch(a)
	mb := modelNameRe.FindStringSubmatch(b)
	if ma == nil || mb == nil {
		return strings.Compare(a, b)
	}

	if c := strings.Compare(strings.TrimSpace(ma[1]), strings.TrimSpace(mb[1])); c != 0 {
		return c
	}

	na, _ := strconv.Atoi(ma[2])
	nb, _ := strconv.Atoi(mb[2])
	if na != nb {
		return na - nb
	}

	ra, rb := suffixRank(ma[3]), suffixRank(mb[3])
	if ra != rb {
		return ra - rb
	}
	return strings.Compare(ma[3], mb[3])
}

// SortModels orders models by brand position in the brands list, then by
// natural model name. Called on every save so the stored document stays
// sorted.
func SortModels(models []Model, brands []Brand) {
	brandOrder := make(map[string]int, len(brands))
	for i, b := range brands {
		brandOrder[b.ID] = i
	}
	orderOf := func(id string) int {
		if o, ok := brandOrder[id]; ok {
			return o
		}
		return len(brands) + 1
	}

	sort.SliceStable(models, func(i, j int) bool {
		oi, oj := orderOf(models[i].Brand), orderOf(models[j].Brand)
		if oi != oj {
			return oi < oj
		}
		return CompareModelNames(models[i].Name, models[j].Name) < 0
	})
}

// FormatPrice renders one price entry for display. A fixed price of zero
// is "FREE".
func FormatPrice(p Price, currency string) string {
	switch p.Type {
	case PriceFixed:
		if p.Price != nil && *p.Price == 0 {
			return "FREE"
		}
		if p.Price != nil {
			return currency + " " + strconv.Itoa(*p.Price)
		}
		return "Contact for quote"
	case PriceRange:
		if p.Min != nil && p.Max != nil {
			return currency + " " + strconv.Itoa(*p.Min) + " - " + strconv.Itoa(*p.Max)
		}
		return "Contact for quote"
	case PriceFrom:
		if p.From != nil {
			return "From " + currency + " " + strconv.Itoa(*p.From)
		}
		return "Contact for quote"
	case PriceTBD:
		return "Price TBD"
	default:
		return "Contact for quote"
	}
}

// IntPtr is a convenience for building price entries.
func IntPtr(v int) *int { return &v }
