package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/symptra/internal/classify"
	"github.com/ppiankov/symptra/internal/pipeline"
)

var (
	trainTrees   int
	trainSeed    int64
	trainTimeout time.Duration
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the classifier and save the model bundle",
	Long: `Train fits the random-forest classifier on the reference dataset,
reports the holdout accuracy and saves the bundle to the configured store
(a local file or a MinIO bucket).

Example:
  symptra train
  symptra train --trees 300 --seed 7
  SYMPTRA_MODEL_STORE=minio symptra train`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().IntVar(&trainTrees, "trees", 0, "number of trees (default from config)")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 0, "random seed (default from config)")
	trainCmd.Flags().DurationVar(&trainTimeout, "timeout", 10*time.Minute, "training timeout")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if trainTrees > 0 {
		cfg.Model.Trees = trainTrees
	}
	if cmd.Flags().Changed("seed") {
		cfg.Model.Seed = trainSeed
	}

	ctx, cancel := context.WithTimeout(context.Background(), trainTimeout)
	defer cancel()

	store, err := classify.NewStore(cfg.Model)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "⚙️  Training %d trees on %s...\n", cfg.Model.Trees, cfg.Data.DatasetPath())
	bundle, err := pipeline.NewTrainer(cfg).Train(ctx)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	data, err := bundle.Encode()
	if err != nil {
		return err
	}
	if err := store.Save(ctx, data); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	meta := bundle.Meta
	fmt.Printf("✓ Trained model %s\n", meta.Version)
	fmt.Printf("  Classes:    %d\n", len(bundle.Forest.Classes))
	fmt.Printf("  Features:   %d\n", len(bundle.Vocabulary))
	fmt.Printf("  Examples:   %d train / %d holdout\n", meta.TrainSize, meta.HoldoutSize)
	fmt.Printf("  Accuracy:   %.2f%%\n", meta.Accuracy*100)
	fmt.Printf("  Saved to:   %s\n", store.Location())
	return nil
}
