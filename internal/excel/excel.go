package excel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"medinearby/internal/models"
)

// idNamespace scopes ids derived for rows that carry no id column.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("medinearby/excel"))

// parseNumber accepts comma or dot decimals and rejects NaN and infinities.
func parseNumber(val string) (float64, error) {
	// Replace comma with dot for comma-decimal locales
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return 0, fmt.Errorf("empty")
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", val)
	}
	return f, nil
}

func optionalFloat(val string) *float64 {
	f, err := parseNumber(val)
	if err != nil {
		return nil
	}
	return &f
}

// optionalCoord is optionalFloat limited to [-limit, limit].
func optionalCoord(val string, limit float64) *float64 {
	f := optionalFloat(val)
	if f == nil || *f < -limit || *f > limit {
		return nil
	}
	return f
}

func OpenFile(filename string) (*excelize.File, error) {
	return excelize.OpenFile(filename)
}

var headerAliases = map[string]string{
	"id":        "id",
	"name":      "name",
	"specialty": "specialty",
	"category":  "category",
	"clinic":    "clinic",
	"store":     "clinic",
	"address":   "address",
	"phone":     "phone",
	"hours":     "hours",
	"timing":    "hours",
	"image":     "image",
	"rating":    "rating",
	"lat":       "lat",
	"latitude":  "lat",
	"lng":       "lng",
	"lon":       "lng",
	"longitude": "lng",
}

// ReadSheet reads provider rows from sheetName. Row 0 is the header; columns
// are matched by name, so their order is free. Rows without a name are
// skipped. A missing id is derived from the row contents so it stays stable
// across re-reads of the same workbook.
func ReadSheet(f *excelize.File, sheetName string) ([]models.RawRecord, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.RawRecord{}, nil
	}

	columns := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}
	if _, ok := columns["name"]; !ok {
		return nil, fmt.Errorf("sheet %s has no name column", sheetName)
	}

	cell := func(row []string, field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	records := []models.RawRecord{}
	for i, row := range rows {
		if i == 0 {
			continue // Skip header
		}
		name := cell(row, "name")
		if name == "" {
			continue
		}

		rec := models.RawRecord{
			ID:        cell(row, "id"),
			Name:      name,
			Specialty: cell(row, "specialty"),
			Category:  cell(row, "category"),
			Clinic:    cell(row, "clinic"),
			Address:   cell(row, "address"),
			Phone:     cell(row, "phone"),
			Hours:     cell(row, "hours"),
			Image:     cell(row, "image"),
			Rating:    optionalFloat(cell(row, "rating")),
		}

		lat, lng := optionalCoord(cell(row, "lat"), 90), optionalCoord(cell(row, "lng"), 180)
		if lat != nil && lng != nil {
			rec.Lat, rec.Lng = lat, lng
		}

		if rec.ID == "" {
			seed := strings.Join([]string{sheetName, rec.Name, rec.Address, cell(row, "lat"), cell(row, "lng")}, "|")
			rec.ID = uuid.NewSHA1(idNamespace, []byte(seed)).String()
		}
		records = append(records, rec)
	}
	return records, nil
}

// BuildResult renders ranked results into a new workbook.
func BuildResult(data []models.RankedResult, sheetName string) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}

	// Use Stream Writer for performance
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, err
	}

	headers := []interface{}{
		"Source", "ID", "Name", "Category", "Clinic", "Address", "Phone",
		"Hours", "Rating", "Lat", "Lng", "Distance (km)",
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return nil, err
	}

	for i, r := range data {
		rowNum := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)

		var rating, lat, lng, distance interface{}
		if r.Rating != nil {
			rating = *r.Rating
		}
		if r.Location != nil {
			lat, lng = r.Location.Lat, r.Location.Lng
		}
		if d, ok := r.DisplayDistance(); ok {
			distance = d
		}

		row := []interface{}{
			r.Source, r.ID, r.Name, r.Category, r.Clinic, r.Address, r.Phone,
			r.Hours, rating, lat, lng, distance,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, err
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, err
	}

	f.SetActiveSheet(index)
	// Delete default sheet if exists
	if sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, err
		}
	}
	return f, nil
}
