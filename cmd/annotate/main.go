package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"parkingwatch/internal/config"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/service/ai"
	"parkingwatch/internal/service/analytics"
	"parkingwatch/internal/service/processor"
	"parkingwatch/internal/service/storage"
	"parkingwatch/internal/service/video"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	totalSpaces int
	outputDir   string
	modelPath   string
	modelFormat string
	runID       string
	policy      string
	verbose     bool
}

func main() {
	if err := newCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cfg := config.Load()
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "annotate VIDEO",
		Short: "Count vehicles in a parking lot video and save annotated frames",
		Long: "annotate runs vehicle detection on a local .mp4 file, prints one line per\n" +
			"captured interval and writes interval_<n>.jpg files to the output directory.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	addFlags(cmd.Flags(), cfg, opts)
	return cmd
}

func addFlags(fs *pflag.FlagSet, cfg *config.Config, opts *options) {
	fs.IntVarP(&opts.totalSpaces, "spaces", "s", cfg.DefaultTotalSpaces, "total parking spaces in the lot")
	fs.StringVarP(&opts.outputDir, "output", "o", cfg.OutputDirectory, "directory for annotated frames")
	fs.StringVarP(&opts.modelPath, "model", "m", cfg.ModelPath, "path to the detection model")
	fs.StringVar(&opts.modelFormat, "format", cfg.ModelFormat, "model format: yolo or ssd")
	fs.StringVar(&opts.runID, "run-id", "", "subfolder for this run (default: random id)")
	fs.StringVar(&opts.policy, "missing-prediction", cfg.MissingPredictionPolicy, "capture before first prediction: skip or infer")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")
}

// lineSink prints the report line of every interval.
func lineSink(out io.Writer) processor.Sink {
	return processor.SinkFunc(func(report analytics.IntervalReport, image []byte) error {
		_, err := fmt.Fprintln(out, report.Line())
		return err
	})
}

func run(ctx context.Context, cfg *config.Config, opts *options, path string, out, errOut io.Writer) error {
	cfg.DefaultTotalSpaces = opts.totalSpaces
	cfg.OutputDirectory = opts.outputDir
	cfg.ModelPath = opts.modelPath
	cfg.ModelFormat = opts.modelFormat
	cfg.MissingPredictionPolicy = opts.policy
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Discard()
	if opts.verbose {
		log = logger.New(errOut, errOut)
	}

	detector, err := ai.NewDetectorService(cfg, log)
	if err != nil {
		return err
	}
	defer detector.Close()

	source, err := video.Open(path)
	if err != nil {
		return err
	}

	runID := opts.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	store := storage.NewFrameStore(cfg.OutputDirectory, runID, nil, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc := processor.New(detector, video.NewAnnotator(), log)
	summary, err := proc.Run(ctx, source, []processor.Sink{lineSink(out), store}, processor.OptionsFromConfig(cfg, opts.totalSpaces))
	if err != nil {
		return err
	}

	fmt.Fprintf(errOut, "%d intervals from %d frames saved to %s\n", summary.Intervals, summary.FramesRead, store.Dir())
	return nil
}
