package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const registryCSV = `identifier,surface_area,construction_year,floor_count,address_text,zone_id,latitude,longitude
9722103DF2892C,85.5,1975,5,Carrer de Mallorca 123,Eixample,41.3952,2.1618
9722104DF2892C,,,,Carrer de Valencia 45,Gracia,,
`

const listingsCSV = `source_id,price,surface_area,room_count,bathroom_count,location_text,description_text,registry_identifier,latitude,longitude
L-001,320000,86,3,2,Eixample,Piso con ascensor y terraza,9722103DF2892C,41.3952,2.1618
L-002,,70,,,Gracia,,,,
`

func TestReadRegistryCSV(t *testing.T) {
	recs, err := ReadRegistryCSV(strings.NewReader(registryCSV))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "9722103DF2892C", first.Identifier)
	require.NotNil(t, first.SurfaceArea)
	assert.Equal(t, 85.5, *first.SurfaceArea)
	require.NotNil(t, first.ConstructionYear)
	assert.Equal(t, 1975, *first.ConstructionYear)
	assert.Equal(t, "Eixample", first.ZoneID)

	second := recs[1]
	assert.Nil(t, second.SurfaceArea)
	assert.Nil(t, second.ConstructionYear)
	assert.Nil(t, second.FloorCount)
	assert.Nil(t, second.Latitude)
	assert.Nil(t, second.Longitude)
}

func TestReadListingsCSV(t *testing.T) {
	recs, err := ReadListingsCSV(strings.NewReader(listingsCSV))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "L-001", first.SourceID)
	require.NotNil(t, first.Price)
	assert.Equal(t, 320000.0, *first.Price)
	require.NotNil(t, first.RoomCount)
	assert.Equal(t, 3, *first.RoomCount)
	assert.Equal(t, "9722103DF2892C", first.RegistryIdentifier)

	second := recs[1]
	assert.Nil(t, second.Price)
	assert.Nil(t, second.RoomCount)
	assert.Nil(t, second.BathroomCount)
	assert.Empty(t, second.RegistryIdentifier)
}

func TestReadRegistryCSVMissingColumns(t *testing.T) {
	_, err := ReadRegistryCSV(strings.NewReader("identifier,zone_id\nA,Eixample\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "surface_area")
}

func TestReadListingsCSVMissingColumns(t *testing.T) {
	_, err := ReadListingsCSV(strings.NewReader("price,surface_area\n100,50\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_id")
}

func TestReadRegistryCSVEmpty(t *testing.T) {
	_, err := ReadRegistryCSV(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadBatchesCSV(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.csv")
	lstPath := filepath.Join(dir, "listings.csv")
	require.NoError(t, os.WriteFile(regPath, []byte(registryCSV), 0o644))
	require.NoError(t, os.WriteFile(lstPath, []byte(listingsCSV), 0o644))

	b, err := LoadBatches(context.Background(), regPath, lstPath)
	require.NoError(t, err)
	assert.Len(t, b.Registry, 2)
	assert.Len(t, b.Listings, 2)
}

func TestLoadBatchesUnsupportedListingFormat(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.csv")
	require.NoError(t, os.WriteFile(regPath, []byte(registryCSV), 0o644))

	_, err := LoadBatches(context.Background(), regPath, filepath.Join(dir, "listings.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported listing batch format")
}

func TestLoadListingsXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listings.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("listings")
	require.NoError(t, err)

	header := []string{"source_id", "price", "surface_area", "room_count", "location_text", "description_text", "registry_identifier"}
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	row = sheet.AddRow()
	for _, v := range []string{"L-010", "450000", "92,5", "4", "Sarria", "atico con terraza", "1111111AA1111A"} {
		row.AddCell().SetString(v)
	}
	// blank rows between records are tolerated
	sheet.AddRow()
	row = sheet.AddRow()
	for _, v := range []string{"L-011", "", "60", "", "Gracia", "", ""} {
		row.AddCell().SetString(v)
	}
	require.NoError(t, f.Save(path))

	recs, err := LoadListingsXLSX(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "L-010", first.SourceID)
	require.NotNil(t, first.Price)
	assert.Equal(t, 450000.0, *first.Price)
	require.NotNil(t, first.SurfaceArea)
	assert.Equal(t, 92.5, *first.SurfaceArea)
	require.NotNil(t, first.RoomCount)
	assert.Equal(t, 4, *first.RoomCount)

	second := recs[1]
	assert.Nil(t, second.Price)
	assert.Nil(t, second.RoomCount)
	assert.Equal(t, "Gracia", second.LocationText)
}

func TestLoadListingsXLSXMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listings.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("listings")
	require.NoError(t, err)
	row := sheet.AddRow()
	for _, h := range []string{"source_id", "price"} {
		row.AddCell().SetString(h)
	}
	require.NoError(t, f.Save(path))

	_, err = LoadListingsXLSX(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surface_area")
}
