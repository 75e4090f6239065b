package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/AyaScan/internal/camera"
	"github.com/himanishpuri/AyaScan/internal/config"
	"github.com/himanishpuri/AyaScan/pkg/ayascan"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/ocr/tesseract"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

// Version is reported by GET /.
const Version = "0.1.0"

var (
	addr           string
	dbPath         string
	configPath     string
	cameraInput    string
	allowedOrigins string
)

func init() {
	flag.StringVar(&addr, "addr", "", "HTTP listen address (default: server.addr from config, :8080)")
	flag.StringVar(&dbPath, "db", "", "SQLite file or postgres:// URL (env: AYASCAN_DB_PATH)")
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file (env: AYASCAN_CONFIG)")
	flag.StringVar(&cameraInput, "camera", "", "Video file or capture device to analyze continuously")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (use * for all)")
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ocrOpts := []tesseract.Option{tesseract.WithLanguages(cfg.OCR.Languages...)}
	if cfg.OCR.Whitelist != nil {
		ocrOpts = append(ocrOpts, tesseract.WithWhitelist(*cfg.OCR.Whitelist))
	}

	engine := tesseract.New(ocrOpts...)
	log.Infof("OCR engine: %s (languages %v)", engine.Name(), cfg.OCR.Languages)

	service, err := ayascan.NewService(ctx, append(cfg.Options(),
		ayascan.WithRecognizer(engine),
		ayascan.WithLogger(log),
	)...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	if cfg.Camera.Input != "" {
		go runCamera(ctx, service, cfg.Camera)
	}

	server := NewServer(service, &ServerConfig{
		Addr:           cfg.Server.Addr,
		DBPath:         cfg.DB,
		Camera:         cfg.Camera.Input,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})
	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}

// applyFlags lets explicit flags win over the config file.
func applyFlags(cfg *config.Config) {
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	if cameraInput != "" {
		cfg.Camera.Input = cameraInput
	}
	if allowedOrigins != "" {
		cfg.Server.CORSOrigins = parseOrigins(allowedOrigins)
	}
}

func parseOrigins(s string) []string {
	if strings.TrimSpace(s) == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// runCamera feeds the live camera into the pipeline until ctx is done.
func runCamera(ctx context.Context, service *ayascan.Service, cam config.CameraConfig) {
	log := logger.GetLogger().With("camera")

	stream := camera.NewStream(cam.Input,
		camera.WithInputFormat(cam.Format),
		camera.WithFPS(cam.FPS),
		camera.WithRotation(cam.Rotation),
		camera.WithRealtime(cam.Realtime),
		camera.WithLogger(log),
	)
	frames, errc := stream.Frames(ctx)

	if err := service.Run(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("Recognition loop stopped: %v", err)
	}
	// Drain so the pump can finish and release anything still in flight.
	for f := range frames {
		f.Close()
	}
	if err := <-errc; err != nil && ctx.Err() == nil {
		log.Errorf("Camera stream ended: %v", err)
	}
}
