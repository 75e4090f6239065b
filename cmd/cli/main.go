package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AyaScan/internal/config"
	"github.com/himanishpuri/AyaScan/pkg/ayascan"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/ocr/tesseract"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

// Version is the application version.
const Version = "0.1.0"

// Global flags
var (
	dbPath     string
	configPath string
	verbose    bool
)

// cfg is loaded once in PersistentPreRunE and shared by every subcommand.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "ayascan",
	Short:         "Read letter-and-number badges from camera frames",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		// An explicit --db beats the config file and the environment.
		if cmd.Flags().Changed("db") {
			cfg.DB = dbPath
		}

		level := cfg.Level()
		if verbose {
			level = logger.DEBUG
		}
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file or postgres:// URL (env: AYASCAN_DB_PATH, default: ayascan.sqlite3)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (env: AYASCAN_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// newRecognizer builds the OCR engine from the loaded config.
func newRecognizer() *tesseract.Engine {
	opts := []tesseract.Option{tesseract.WithLanguages(cfg.OCR.Languages...)}
	if cfg.OCR.Whitelist != nil {
		opts = append(opts, tesseract.WithWhitelist(*cfg.OCR.Whitelist))
	}
	return tesseract.New(opts...)
}

// createService creates a new AyaScan service with configured options
func createService(ctx context.Context) (*ayascan.Service, error) {
	engine := newRecognizer()
	logger.Debugf("OCR engine: %s", engine.Name())

	opts := append(cfg.Options(),
		ayascan.WithRecognizer(engine),
		ayascan.WithLogger(logger.GetLogger()),
	)
	return ayascan.NewService(ctx, opts...)
}

func printBanner() {
	banner := `
    _                ____
   / \  _   _  __ _ / ___|  ___ __ _ _ __
  / _ \| | | |/ _' |\___ \ / __/ _' | '_ \
 / ___ \ |_| | (_| | ___) | (_| (_| | | | |
/_/   \_\__, |\__,_||____/ \___\__,_|_| |_|
        |___/
          Badge Recognition CLI Tool
`
	fmt.Fprintln(os.Stderr, banner)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		logger.Errorf("Command failed: %v", err)
		stop()
		os.Exit(1)
	}
}
