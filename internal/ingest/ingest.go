package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// Batches holds the two source batches one run operates on.
type Batches struct {
	Registry []model.RegistryRecord
	Listings []model.ListingRecord
}

// LoadBatches loads both source batches concurrently; they are independent
// inputs. Any load failure is a configuration error and aborts the run
// before any stage executes.
func LoadBatches(ctx context.Context, registryPath, listingsPath string) (*Batches, error) {
	var b Batches
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := LoadRegistryCSV(registryPath)
		if err != nil {
			return err
		}
		b.Registry = recs
		return nil
	})

	g.Go(func() error {
		recs, err := loadListings(listingsPath)
		if err != nil {
			return err
		}
		b.Listings = recs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("batches loaded",
		zap.String("registry", registryPath),
		zap.String("listings", listingsPath),
		zap.Int("registry_records", len(b.Registry)),
		zap.Int("listing_records", len(b.Listings)),
	)
	return &b, nil
}

func loadListings(path string) ([]model.ListingRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadListingsXLSX(path)
	case ".csv":
		return LoadListingsCSV(path)
	default:
		return nil, eris.Errorf("ingest: unsupported listing batch format %q", filepath.Ext(path))
	}
}
