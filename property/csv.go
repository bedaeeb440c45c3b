package property

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Expected dataset header, in order.
var expectedColumns = []string{
	"Location", "Price", "Area", "Bedrooms", "Bathrooms",
	"Date Added", "Agency", "Agent", "Page URL", "Property Type",
}

// Date layouts seen in the dataset exports.
var dateLayouts = []string{
	"2006-01-02",
	"01-02-2006",
	"2/1/2006",
	"02/01/2006",
}

// LoadCSV reads the property dataset from path. Rows that cannot be parsed
// are skipped rather than failing the whole load; the record ID is the
// zero-based data row index so identity is stable across reloads.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses property records from r. The first row must be the header.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	row := -1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row++

		rec, ok := parseRow(row, fields, cols)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// mapColumns resolves the header into a name→index map, requiring every
// expected column to be present.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, want := range expectedColumns {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("dataset missing column %q", want)
		}
	}
	return cols, nil
}

func parseRow(row int, fields []string, cols map[string]int) (Record, bool) {
	get := func(name string) string {
		i := cols[name]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	price, ok := parsePrice(get("Price"))
	if !ok {
		return Record{}, false
	}
	area, unit := parseArea(get("Area"))

	rec := Record{
		ID:           row,
		Location:     get("Location"),
		Price:        price,
		Currency:     "PKR",
		Area:         area,
		AreaUnit:     unit,
		Bedrooms:     parseCount(get("Bedrooms")),
		Bathrooms:    parseCount(get("Bathrooms")),
		DateAdded:    parseDate(get("Date Added")),
		Agency:       get("Agency"),
		Agent:        get("Agent"),
		SourceURL:    get("Page URL"),
		PropertyType: ParseType(get("Property Type")),
	}

	if rec.Location == "" {
		return Record{}, false
	}
	return rec, true
}

func parsePrice(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseArea splits a value like "10 Marla" or "500 Square Yards" into its
// numeric part and unit tag.
func parseArea(s string) (float64, string) {
	parts := strings.SplitN(s, " ", 2)
	v, err := strconv.ParseFloat(strings.ReplaceAll(parts[0], ",", ""), 64)
	if err != nil {
		return 0, s
	}
	unit := ""
	if len(parts) == 2 {
		unit = strings.TrimSpace(parts[1])
	}
	return v, unit
}

func parseCount(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
