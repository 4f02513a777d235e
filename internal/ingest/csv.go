// Package ingest loads the registry and listing batches from tabular files
// and enforces the required-column contract before any pipeline stage runs.
package ingest

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// registryRequired and listingRequired are the minimum column sets. Absence
// is a configuration error raised before any partial processing.
var (
	registryRequired = []string{"identifier", "surface_area"}
	listingRequired  = []string{"price", "surface_area", "source_id"}
)

// ReadRegistryCSV decodes a registry batch from CSV.
func ReadRegistryCSV(r io.Reader) ([]model.RegistryRecord, error) {
	dec, err := newDecoder(r, registryRequired, "registry")
	if err != nil {
		return nil, err
	}

	var out []model.RegistryRecord
	for {
		var rec model.RegistryRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "ingest: decode registry row")
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadListingsCSV decodes a listing batch from CSV.
func ReadListingsCSV(r io.Reader) ([]model.ListingRecord, error) {
	dec, err := newDecoder(r, listingRequired, "listings")
	if err != nil {
		return nil, err
	}

	var out []model.ListingRecord
	for {
		var rec model.ListingRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "ingest: decode listing row")
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadRegistryCSV reads a registry batch from a file path.
func LoadRegistryCSV(path string) ([]model.RegistryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open registry batch %s", path)
	}
	defer f.Close()
	return ReadRegistryCSV(f)
}

// LoadListingsCSV reads a listing batch from a file path.
func LoadListingsCSV(path string) ([]model.ListingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open listing batch %s", path)
	}
	defer f.Close()
	return ReadListingsCSV(f)
}

func newDecoder(r io.Reader, required []string, side string) (*csvutil.Decoder, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if err == io.EOF {
			return nil, eris.Errorf("ingest: %s batch is empty", side)
		}
		return nil, eris.Wrapf(err, "ingest: read %s header", side)
	}

	if missing := missingColumns(dec.Header(), required); len(missing) > 0 {
		return nil, eris.Errorf("ingest: %s batch missing required columns %v", side, missing)
	}
	return dec, nil
}

func missingColumns(header, required []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
