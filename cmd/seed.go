package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-eval/internal/store"
)

var seedPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load projects, invites, requirements and proposals from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "seed: migrate store")
		}
		return seedFile(ctx, st, seedPath)
	},
}

func seedFile(ctx context.Context, st store.Store, path string) error {
	ds, err := readDataset(path)
	if err != nil {
		return err
	}
	if err := st.Seed(ctx, ds); err != nil {
		return eris.Wrap(err, "seed: load dataset")
	}
	zap.L().Info("seed: dataset loaded",
		zap.String("file", path),
		zap.Int("projects", len(ds.Projects)),
		zap.Int("proposals", len(ds.Proposals)),
		zap.Int("requirement_sets", len(ds.RequirementSets)),
	)
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedPath, "file", "", "path to a JSON dataset (required)")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}
