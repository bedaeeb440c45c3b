// Package property defines the listing record model and the dataset loader.
//
// A Record is immutable once ingested; its identity is the source row it was
// parsed from. Canonical serialization is the single text form used for
// chunking and embedding, so its field order must never change.
package property

import (
	"fmt"
	"strings"
	"time"
)

// Type enumerates the kinds of listings in the dataset.
type Type string

const (
	TypeHouse     Type = "House"
	TypeApartment Type = "Apartment"
	TypePlot      Type = "Plot"
	TypeShop      Type = "Shop"
	TypeOffice    Type = "Office"
	TypeFarmhouse Type = "Farm House"
	TypeUnknown   Type = "Unknown"
)

// ParseType maps a raw dataset value onto a known Type, defaulting to
// TypeUnknown for unrecognized values.
func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "house":
		return TypeHouse
	case "apartment", "flat":
		return TypeApartment
	case "plot", "residential plot", "commercial plot":
		return TypePlot
	case "shop":
		return TypeShop
	case "office":
		return TypeOffice
	case "farm house", "farmhouse":
		return TypeFarmhouse
	default:
		return TypeUnknown
	}
}

// Record is one property listing. Identity is the source row number.
type Record struct {
	ID           int       // zero-based source row
	Location     string    // e.g. "DHA Phase 6, Karachi"
	Price        float64   // denominated in Currency
	Currency     string    // e.g. "PKR"
	Area         float64   // denominated in AreaUnit
	AreaUnit     string    // e.g. "Marla", "Square Yards"
	Bedrooms     int       // non-negative
	Bathrooms    int       // non-negative
	DateAdded    time.Time // calendar date, time component zero
	Agency       string
	Agent        string
	SourceURL    string
	PropertyType Type
}

// Canonical renders the record in the fixed human-readable form used for
// chunking and embedding. The output always ends with a newline so records
// concatenate into a well-formed stream. Deterministic for identical records.
func (r Record) Canonical() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s | ", r.Location)
	fmt.Fprintf(&b, "Price: %s %s | ", r.Currency, formatNumber(r.Price))
	fmt.Fprintf(&b, "Area: %s %s | ", formatNumber(r.Area), r.AreaUnit)
	fmt.Fprintf(&b, "Bedrooms: %d | ", r.Bedrooms)
	fmt.Fprintf(&b, "Bathrooms: %d | ", r.Bathrooms)
	fmt.Fprintf(&b, "Date Added: %s | ", r.DateAdded.Format("2006-01-02"))
	fmt.Fprintf(&b, "Agency: %s | ", r.Agency)
	fmt.Fprintf(&b, "Agent: %s | ", r.Agent)
	fmt.Fprintf(&b, "Page URL: %s | ", r.SourceURL)
	fmt.Fprintf(&b, "Property Type: %s\n", r.PropertyType)
	return b.String()
}

// formatNumber renders a float without a trailing ".0" for whole values.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
