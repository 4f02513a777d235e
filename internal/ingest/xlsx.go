package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// LoadListingsXLSX reads a listing batch from the first sheet of an XLSX
// workbook. Listing feeds commonly arrive as spreadsheet exports; the
// registry side is CSV-only.
func LoadListingsXLSX(path string) ([]model.ListingRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open listing workbook %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: listing workbook %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("ingest: listing workbook %s is empty", path)
	}

	header := rowToStrings(sheet.Rows[0])
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	if missing := missingColumns(header, listingRequired); len(missing) > 0 {
		return nil, eris.Errorf("ingest: listings batch missing required columns %v", missing)
	}

	var out []model.ListingRecord
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if allBlank(cells) {
			continue
		}
		out = append(out, model.ListingRecord{
			SourceID:           cellString(cells, col, "source_id"),
			Price:              cellFloat(cells, col, "price"),
			SurfaceArea:        cellFloat(cells, col, "surface_area"),
			RoomCount:          cellInt(cells, col, "room_count"),
			BathroomCount:      cellInt(cells, col, "bathroom_count"),
			LocationText:       cellString(cells, col, "location_text"),
			DescriptionText:    cellString(cells, col, "description_text"),
			RegistryIdentifier: cellString(cells, col, "registry_identifier"),
			Latitude:           cellFloat(cells, col, "latitude"),
			Longitude:          cellFloat(cells, col, "longitude"),
		})
	}
	return out, nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellString(cells []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func cellFloat(cells []string, col map[string]int, name string) *float64 {
	s := cellString(cells, col, name)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

func cellInt(cells []string, col map[string]int, name string) *int {
	s := cellString(cells, col, name)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
