package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/checkpoint"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/ingest"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/pipeline"
)

var (
	checkpointRegistryPath string
	checkpointListingsPath string
	checkpointSeedsPath    string
	checkpointAuditOut     string
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Run the granularity gate without matching",
	Long:  "Evaluates intra-zone surface dispersion and seed completeness on a registry batch. Exits non-zero on a REVIEW or ERROR decision.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var (
			registry []model.RegistryRecord
			listings []model.ListingRecord
		)
		if checkpointListingsPath != "" {
			batches, err := ingest.LoadBatches(ctx, checkpointRegistryPath, checkpointListingsPath)
			if err != nil {
				return err
			}
			registry, listings = batches.Registry, batches.Listings
		} else {
			var err error
			registry, err = ingest.LoadRegistryCSV(checkpointRegistryPath)
			if err != nil {
				return err
			}
		}

		var seeds []string
		if checkpointSeedsPath != "" {
			var err error
			seeds, err = loadSeeds(checkpointSeedsPath)
			if err != nil {
				return err
			}
		}

		res, err := pipeline.New(cfg).Checkpoint(registry, listings, seeds)
		if res != nil {
			if checkpointAuditOut != "" {
				if werr := checkpoint.WriteArtifact(checkpointAuditOut, res); werr != nil {
					return werr
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(res) //nolint:errcheck
		}
		if err != nil {
			return err
		}
		if res.Decision != model.DecisionGo {
			return eris.Errorf("checkpoint decision: %s", res.Decision)
		}
		return nil
	},
}

func init() {
	checkpointCmd.Flags().StringVar(&checkpointRegistryPath, "registry", "", "registry batch file (csv)")
	checkpointCmd.Flags().StringVar(&checkpointListingsPath, "listings", "", "listings batch used to derive seed identifiers (optional)")
	checkpointCmd.Flags().StringVar(&checkpointSeedsPath, "seeds", "", "expected identifier list, one per line (optional)")
	checkpointCmd.Flags().StringVar(&checkpointAuditOut, "audit-out", "", "write the checkpoint artifact to this yaml file")
	checkpointCmd.MarkFlagRequired("registry") //nolint:errcheck
	rootCmd.AddCommand(checkpointCmd)
}
