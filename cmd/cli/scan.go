package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/AyaScan/internal/camera"
	"github.com/himanishpuri/AyaScan/pkg/ayascan"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

type scanOptions struct {
	Input    string
	Format   string
	FPS      float64
	Rotation int
	Realtime bool
	AutoSave bool
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Recognize badges in a video file or capture device",
	Example: `  ayascan scan --input clip.mp4 --fps 5
  ayascan scan --input /dev/video0 --format v4l2 --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, scanOpts)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.Input, "input", "i", "", "Video file or capture device (default: camera.input from config)")
	scanCmd.Flags().StringVarP(&scanOpts.Format, "format", "f", "", "Force the ffmpeg input format, e.g. v4l2")
	scanCmd.Flags().Float64Var(&scanOpts.FPS, "fps", 0, "Frames per second to analyze (0 keeps the source rate)")
	scanCmd.Flags().IntVarP(&scanOpts.Rotation, "rotation", "r", 0, "Clockwise rotation in degrees that makes frames upright")
	scanCmd.Flags().BoolVar(&scanOpts.Realtime, "realtime", false, "Read file input at its native rate")
	scanCmd.Flags().BoolVar(&scanOpts.AutoSave, "save", false, "Save each newly confirmed reading to the history")
	rootCmd.AddCommand(scanCmd)
}

// mergeScanOptions fills unset flags from the camera section of the config.
func mergeScanOptions(cmd *cobra.Command, opts scanOptions) scanOptions {
	cam := cfg.Camera
	if opts.Input == "" {
		opts.Input = cam.Input
	}
	if !cmd.Flags().Changed("format") {
		opts.Format = cam.Format
	}
	if !cmd.Flags().Changed("fps") {
		opts.FPS = cam.FPS
	}
	if !cmd.Flags().Changed("rotation") {
		opts.Rotation = cam.Rotation
	}
	if !cmd.Flags().Changed("realtime") {
		opts.Realtime = cam.Realtime
	}
	return opts
}

// confirmationHandler records stabilizer confirmations in the session and,
// with auto-save on, stores a reading once. The stabilizer keeps confirming
// while a badge stays in view, so a confirmation equal to the last saved
// reading is not stored again.
type confirmationHandler struct {
	ctx      context.Context
	session  *ayascan.Session
	autoSave bool
	out      io.Writer
	log      ayascan.Logger

	confirmations int
	saves         int
	lastShown     ayascan.Pair
	lastSaved     ayascan.Pair
}

func (h *confirmationHandler) onStablePair(letter, number string) {
	h.session.OnStablePair(letter, number)
	h.confirmations++

	reading := ayascan.Pair{Letter: letter, Digits: number}
	if reading != h.lastShown {
		fmt.Fprintf(h.out, "\n✅ %s\n", reading)
		h.lastShown = reading
	}
	if !h.autoSave || reading == h.lastSaved {
		return
	}
	if _, _, err := h.session.SaveLatest(h.ctx); err != nil {
		h.log.Errorf("Auto-save failed: %v", err)
		return
	}
	h.lastSaved = reading
	h.saves++
}

func runScan(cmd *cobra.Command, opts scanOptions) error {
	log := logger.GetLogger()
	ctx := cmd.Context()

	opts = mergeScanOptions(cmd, opts)
	if opts.Input == "" {
		return errors.New("--input is required (or set camera.input in the config)")
	}

	printBanner()
	fmt.Fprintln(os.Stderr, "🔧 Initializing service...")
	svc, err := createService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	session := svc.Session()
	handler := &confirmationHandler{
		ctx:      ctx,
		session:  session,
		autoSave: opts.AutoSave,
		out:      os.Stderr,
		log:      log,
	}
	svc.Pipeline().SetOnStablePair(handler.onStablePair)

	stream := camera.NewStream(opts.Input,
		camera.WithInputFormat(opts.Format),
		camera.WithFPS(opts.FPS),
		camera.WithRotation(opts.Rotation),
		camera.WithRealtime(opts.Realtime),
	)

	total := camera.CountFrames(opts.Input)
	if total <= 0 {
		total = -1
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("🔍 Scanning"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	frames, errc := stream.Frames(ctx)
	failures := 0
	for f := range frames {
		if err := svc.Process(ctx, f); err != nil {
			failures++
			log.Debugf("Frame failed: %v", err)
		}
		bar.Set64(stream.Count())
	}
	bar.Finish()

	if err := <-errc; err != nil && ctx.Err() == nil {
		return err
	}

	st := svc.Pipeline().Stats()
	fmt.Fprintf(os.Stderr, "\n🏁 Scan complete. Read %d frames, analyzed %d, %d OCR failures, %d confirmations, %d saved.\n",
		stream.Count(), st.Frames-st.Skipped, failures, handler.confirmations, handler.saves)
	log.Infof("Scan of %s finished: %+v", opts.Input, st)

	if results := session.Filtered(); len(results) > 0 {
		fmt.Println()
		printRecords(results)
	}
	return nil
}
