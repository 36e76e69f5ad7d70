package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/andresmejia3/gatekeeper/internal/config"
	"github.com/andresmejia3/gatekeeper/internal/dataset"
	"github.com/andresmejia3/gatekeeper/internal/utils"
	"github.com/andresmejia3/gatekeeper/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the face classifier on the enrolled samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runTrain(Cfg)
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cfg *config.Config) error {
	samples, skipped, err := dataset.Scan(cfg.Storage.DatasetDir)
	for _, name := range skipped {
		fmt.Fprintf(os.Stderr, "⚠️  Skipping %s: not named user.<id>.<n>.jpg\n", name)
	}
	if errors.Is(err, os.ErrNotExist) {
		err = fmt.Errorf("%w: %s does not exist", dataset.ErrEmpty, cfg.Storage.DatasetDir)
	}
	if err != nil {
		utils.ShowError("Nothing to train on", err, "enroll at least one person with 'gatekeeper enroll'")
		return err
	}

	ids := dataset.Identities(samples)
	fmt.Fprintf(os.Stderr, "🧠 Training on %d samples of %d identities...\n", len(samples), len(ids))

	bar := progressbar.NewOptions(len(samples),
		progressbar.OptionSetDescription("🧠 Loading samples"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	err = vision.Train(samples, cfg.Storage.ModelPath, cfg.Detector.FaceSize, func() { bar.Add(1) })
	bar.Finish()
	if err != nil {
		utils.ShowError("Training failed", err, "")
		return err
	}

	Logger.Info("model trained",
		zap.Int("samples", len(samples)),
		zap.Ints("identities", ids),
		zap.String("model_path", cfg.Storage.ModelPath),
	)
	fmt.Fprintf(os.Stderr, "\n✅ Model saved to %s\n", cfg.Storage.ModelPath)
	return nil
}
