package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AyaScan/internal/camera"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/extractor"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

var recognizeRotation int

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Run OCR and extraction on a single image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger()

		frame, err := camera.FromFile(args[0], recognizeRotation)
		if err != nil {
			return err
		}
		defer frame.Close()

		log.Infof("Recognizing %s (%dx%d, rotation %d)", args[0], frame.Width, frame.Height, frame.RotationDegrees)
		fragments, err := newRecognizer().Recognize(cmd.Context(), frame.Image, frame.RotationDegrees)
		if err != nil {
			return fmt.Errorf("recognition failed: %w", err)
		}

		if len(fragments) == 0 {
			fmt.Println("📭 No text found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TEXT\tLEFT\tTOP\tRIGHT\tBOTTOM")
		fmt.Fprintln(w, "----\t----\t---\t-----\t------")
		for _, f := range fragments {
			fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%.0f\t%.0f\n", f.Text, f.Box.Left, f.Box.Top, f.Box.Right, f.Box.Bottom)
		}
		w.Flush()

		width, height := frame.UprightSize()
		ex := extractor.New(cfg.Recognition.InnerRadiusRatio)
		pair, ok := ex.Extract(fragments, width, height)
		if !ok {
			fmt.Println("\n❌ No badge reading in this image")
			return nil
		}
		fmt.Printf("\n✅ Candidate: %s\n", pair)
		return nil
	},
}

func init() {
	recognizeCmd.Flags().IntVarP(&recognizeRotation, "rotation", "r", 0, "Clockwise rotation in degrees that makes the image upright")
	rootCmd.AddCommand(recognizeCmd)
}
