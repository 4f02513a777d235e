package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/checkpoint"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/ingest"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/pipeline"
)

var (
	matchRegistryPath string
	matchListingsPath string
	matchSeedsPath    string
	matchAuditOut     string
	matchNoStore      bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run a full linkage pass",
	Long:  "Loads the registry and listings batches, runs the granularity gate, the exact/fuzzy/grid matchers and the cleaner, and persists the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		batches, err := ingest.LoadBatches(ctx, matchRegistryPath, matchListingsPath)
		if err != nil {
			return err
		}

		var seeds []string
		if matchSeedsPath != "" {
			seeds, err = loadSeeds(matchSeedsPath)
			if err != nil {
				return err
			}
		}

		res, err := pipeline.New(cfg).Run(batches.Registry, batches.Listings, seeds)
		if err != nil {
			return err
		}

		run := &model.Run{
			Decision:     res.Checkpoint.Decision,
			MatchedCount: len(res.Matched),
			Metrics:      res.Metrics,
		}

		if !matchNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			if err := st.SaveRun(ctx, run); err != nil {
				return err
			}
			if err := st.SaveMatches(ctx, run.ID, res.Matched); err != nil {
				return err
			}
			if err := st.SaveCheckpoint(ctx, run.ID, res.Checkpoint); err != nil {
				return err
			}
			zap.L().Info("run persisted", zap.String("run_id", run.ID))
		}

		if matchAuditOut != "" {
			if err := checkpoint.WriteArtifact(matchAuditOut, res.Checkpoint); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// loadSeeds reads one expected identifier per line; blank lines and
// #-comments are skipped. Identifiers are normalized by the pipeline, not
// here.
func loadSeeds(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read seeds file %s", path)
	}
	var seeds []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	return seeds, nil
}

func init() {
	matchCmd.Flags().StringVar(&matchRegistryPath, "registry", "", "registry batch file (csv)")
	matchCmd.Flags().StringVar(&matchListingsPath, "listings", "", "listings batch file (csv or xlsx)")
	matchCmd.Flags().StringVar(&matchSeedsPath, "seeds", "", "expected identifier list, one per line (optional)")
	matchCmd.Flags().StringVar(&matchAuditOut, "audit-out", "", "write the checkpoint artifact to this yaml file")
	matchCmd.Flags().BoolVar(&matchNoStore, "no-store", false, "skip persisting the run")
	matchCmd.MarkFlagRequired("registry") //nolint:errcheck
	matchCmd.MarkFlagRequired("listings") //nolint:errcheck
	rootCmd.AddCommand(matchCmd)
}
