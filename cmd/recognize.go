package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/andresmejia3/gatekeeper/internal/config"
	"github.com/andresmejia3/gatekeeper/internal/eventlog"
	"github.com/andresmejia3/gatekeeper/internal/recognition"
	"github.com/andresmejia3/gatekeeper/internal/utils"
	"github.com/andresmejia3/gatekeeper/internal/vision"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// recognizeOptions are the per-run overrides of the recognition config.
type recognizeOptions struct {
	Threshold       float64
	RequiredMatches int
	Timeout         time.Duration
	Device          int
	NoPreview       bool
	NoBeep          bool
}

var recognizeOpts recognizeOptions

var recognizeCmd = &cobra.Command{
	Use:         "recognize",
	Short:       "Watch the camera and grant access to an enrolled face",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyRecognizeFlags(cmd, Cfg, recognizeOpts)
		if err := Cfg.Validate(); err != nil {
			utils.ShowError("Configuration Error", err, "")
			return err
		}
		return runRecognize(cmd.Context(), Cfg)
	},
}

func init() {
	def := config.Default()
	recognizeCmd.Flags().Float64VarP(&recognizeOpts.Threshold, "threshold", "t", def.Recognition.Threshold, "Maximum LBPH distance that counts as a match (lower is stricter)")
	recognizeCmd.Flags().IntVarP(&recognizeOpts.RequiredMatches, "matches", "m", def.Recognition.RequiredMatches, "Confirmations needed before access is granted")
	recognizeCmd.Flags().DurationVar(&recognizeOpts.Timeout, "timeout", def.Recognition.Timeout, "Give up after this long without a decision")
	recognizeCmd.Flags().IntVar(&recognizeOpts.Device, "camera", def.Camera.Device, "Camera device index")
	recognizeCmd.Flags().BoolVar(&recognizeOpts.NoPreview, "no-preview", false, "Run without the preview window (stop with Ctrl+C)")
	recognizeCmd.Flags().BoolVar(&recognizeOpts.NoBeep, "no-beep", false, "Do not ring the terminal bell on grant")
	rootCmd.AddCommand(recognizeCmd)
}

// applyRecognizeFlags copies explicitly set flags over the loaded config.
func applyRecognizeFlags(cmd *cobra.Command, cfg *config.Config, opts recognizeOptions) {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.Recognition.Threshold = opts.Threshold
	}
	if flags.Changed("matches") {
		cfg.Recognition.RequiredMatches = opts.RequiredMatches
	}
	if flags.Changed("timeout") {
		cfg.Recognition.Timeout = opts.Timeout
	}
	if flags.Changed("camera") {
		cfg.Camera.Device = opts.Device
	}
	if opts.NoPreview {
		cfg.Recognition.Preview = false
	}
	if opts.NoBeep {
		cfg.Recognition.Beep = false
	}
}

func runRecognize(ctx context.Context, cfg *config.Config) error {
	classifier, err := vision.LoadClassifier(cfg.Storage.ModelPath, cfg.Detector.FaceSize)
	if err != nil {
		if errors.Is(err, vision.ErrModelNotFound) {
			utils.ShowError("No trained model", err, "enroll at least one person with 'gatekeeper enroll' first")
		} else {
			utils.ShowError("Failed to load classifier model", err, "")
		}
		return err
	}
	defer classifier.Close()

	// The store is opened only once the model precondition holds.
	if err := connectStore(ctx, cfg); err != nil {
		utils.ShowError("Failed to connect to database", err, "")
		return err
	}
	names, err := DB.Directory(ctx)
	if err != nil {
		utils.ShowError("Failed to load enrolled identities", err, "")
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "⚠️  No identities enrolled. Every face will be reported as Unknown.")
	}

	detector, err := vision.NewCascadeDetector(cfg.Detector.CascadePath, vision.DetectorParams{
		ScaleFactor:  cfg.Detector.ScaleFactor,
		MinNeighbors: cfg.Detector.MinNeighbors,
		MinSize:      cfg.Detector.MinSize,
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

	runner := &recognition.Runner[*vision.Frame]{
		Config:     cfg.RecognitionPolicy(),
		Source:     camera,
		Detector:   detector,
		Classifier: classifier,
		Names:      names,
		Events:     eventlog.New(cfg.Storage.EventLogPath),
		Logger:     Logger,
	}
	if cfg.Recognition.Beep {
		runner.Notifier = bell{w: os.Stdout}
	}
	if cfg.Recognition.Preview {
		window := vision.NewWindow("gatekeeper")
		defer window.Close()
		runner.Overlay = window
		runner.Abort = window
		fmt.Fprintln(os.Stderr, "🎥 Looking for a known face... (press 'q' in the preview window to abort)")
	} else {
		fmt.Fprintln(os.Stderr, "🎥 Looking for a known face... (press Ctrl+C to abort)")
	}

	decision, err := runner.Run(ctx)
	if !decision.State.Terminal() {
		utils.ShowError("Recognition stopped", err, "")
		return err
	}

	printDecision(os.Stdout, decision)
	if err != nil {
		// The decision stands; only the event log write failed.
		fmt.Fprintf(os.Stderr, "⚠️  Could not record the event in %s: %v\n", cfg.Storage.EventLogPath, err)
		Logger.Warn("decision not recorded", zap.Error(err))
	}
	return nil
}

// printDecision writes the operator-facing outcome line.
func printDecision(w io.Writer, d recognition.Decision) {
	icon := map[recognition.State]string{
		recognition.Granted:  "✅",
		recognition.TimedOut: "⌛",
		recognition.Aborted:  "🛑",
	}[d.State]
	if icon == "" {
		return
	}
	fmt.Fprintf(w, "%s %s [%s]\n", icon, capitalize(d.String()), utils.FmtElapsed(d.Elapsed))
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// bell rings the terminal bell when access is granted.
type bell struct {
	w io.Writer
}

func (b bell) Notify(d recognition.Decision) {
	if d.State == recognition.Granted {
		fmt.Fprint(b.w, "\a")
	}
}
