package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/andresmejia3/gatekeeper/internal/config"
	"github.com/andresmejia3/gatekeeper/internal/dataset"
	"github.com/andresmejia3/gatekeeper/internal/utils"
	"github.com/andresmejia3/gatekeeper/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type enrollOptions struct {
	Name      string
	Level     int
	Samples   int
	Device    int
	NoPreview bool
	NoTrain   bool
}

var enrollOpts enrollOptions

var enrollCmd = &cobra.Command{
	Use:         "enroll",
	Short:       "Register a person and capture face samples from the camera",
	Annotations: map[string]string{annotationDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := validateEnrollFlags(cmd, Cfg, &enrollOpts); err != nil {
			utils.ShowError("Configuration Error", err, "")
			return err
		}
		return runEnroll(cmd.Context(), Cfg, enrollOpts)
	},
}

func init() {
	def := config.Default()
	enrollCmd.Flags().StringVarP(&enrollOpts.Name, "name", "n", "", "Name of the person to enroll")
	enrollCmd.Flags().IntVarP(&enrollOpts.Level, "level", "l", 1, "Access level granted to this person")
	enrollCmd.Flags().IntVarP(&enrollOpts.Samples, "samples", "s", def.Enrollment.Samples, "Number of face samples to capture")
	enrollCmd.Flags().IntVar(&enrollOpts.Device, "camera", def.Camera.Device, "Camera device index")
	enrollCmd.Flags().BoolVar(&enrollOpts.NoPreview, "no-preview", false, "Capture without the preview window")
	enrollCmd.Flags().BoolVar(&enrollOpts.NoTrain, "no-train", false, "Skip retraining the model after capture")

	enrollCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(enrollCmd)
}

// validateEnrollFlags checks the options and folds explicit flags into cfg.
func validateEnrollFlags(cmd *cobra.Command, cfg *config.Config, opts *enrollOptions) error {
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return errors.New("--name must not be empty")
	}
	if opts.Level < 0 {
		return fmt.Errorf("invalid access level: must be >= 0, got %d", opts.Level)
	}
	if cmd.Flags().Changed("samples") {
		cfg.Enrollment.Samples = opts.Samples
	}
	if cmd.Flags().Changed("camera") {
		cfg.Camera.Device = opts.Device
	}
	return cfg.Validate()
}

func runEnroll(ctx context.Context, cfg *config.Config, opts enrollOptions) error {
	detector, err := vision.NewCascadeDetector(cfg.Detector.CascadePath, vision.DetectorParams{
		ScaleFactor:  cfg.Enrollment.ScaleFactor,
		MinNeighbors: cfg.Enrollment.MinNeighbors,
	})
	if err != nil {
		utils.ShowError("Failed to load face detector", err, "set detector.cascade_path or GATEKEEPER_CASCADE_PATH")
		return err
	}
	defer detector.Close()

	camera, err := vision.OpenCamera(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		utils.ShowError("Failed to open camera", err, "")
		return err
	}
	defer camera.Close()

	id, err := DB.Create(ctx, opts.Name, opts.Level)
	if err != nil {
		utils.ShowError("Failed to create identity", err, "")
		return err
	}
	log := Logger.With(zap.Int("identity_id", id), zap.String("name", opts.Name))
	log.Info("identity created", zap.Int("access_level", opts.Level))
	fmt.Fprintf(os.Stderr, "👤 Enrolled %s as identity #%d (access level %d)\n", opts.Name, id, opts.Level)

	var window *vision.Window
	if !opts.NoPreview {
		window = vision.NewWindow("gatekeeper enrollment")
		defer window.Close()
	}

	saved, err := captureSamples(ctx, cfg, camera, detector, window, id)
	if err != nil {
		utils.ShowError("Sample capture failed", err, "")
		return err
	}
	log.Info("samples captured", zap.Int("samples", saved))
	if saved == 0 {
		err := errors.New("no face samples were captured")
		utils.ShowError("Enrollment incomplete", err, "re-run enroll in better light, facing the camera")
		return err
	}
	fmt.Fprintf(os.Stderr, "📸 Saved %d samples to %s\n", saved, cfg.Storage.DatasetDir)

	if opts.NoTrain {
		fmt.Fprintln(os.Stderr, "ℹ️  Skipping training. Run 'gatekeeper train' before recognizing.")
		return nil
	}
	return runTrain(cfg)
}

// captureSamples saves up to cfg.Enrollment.Samples normalized faces for
// identity id. It stops early on 'q' in the window or a cancelled ctx and
// returns how many samples were written.
func captureSamples(ctx context.Context, cfg *config.Config, camera *vision.Camera, detector *vision.CascadeDetector, window *vision.Window, id int) (int, error) {
	next, err := dataset.NextIndex(cfg.Storage.DatasetDir, id)
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	target := cfg.Enrollment.Samples
	bar := progressbar.NewOptions(target,
		progressbar.OptionSetDescription("📸 Capturing face samples"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	saved := 0
	for saved < target {
		if ctx.Err() != nil || (window != nil && window.Aborted()) {
			fmt.Fprintln(os.Stderr, "\n🛑 Capture stopped by operator.")
			break
		}

		frame, err := camera.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return saved, err
		}

		regions, err := detector.Detect(frame)
		if err != nil {
			frame.Close()
			return saved, err
		}
		for _, r := range regions {
			if saved >= target {
				break
			}
			path := dataset.Path(cfg.Storage.DatasetDir, id, next)
			if err := vision.SaveSample(frame, r, cfg.Detector.FaceSize, path); err != nil {
				Logger.Warn("skipping face sample", zap.Error(err))
				continue
			}
			next++
			saved++
			bar.Add(1)
		}

		if window != nil {
			window.ShowRegions(frame, regions)
		}
		frame.Close()
	}
	return saved, nil
}
