package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/drowsewatch/internal/app"
	"github.com/ayusman/drowsewatch/internal/capture"
	"github.com/ayusman/drowsewatch/internal/config"
	"github.com/ayusman/drowsewatch/internal/detector"
	"github.com/ayusman/drowsewatch/internal/logging"
	"github.com/ayusman/drowsewatch/internal/server"
	"github.com/ayusman/drowsewatch/internal/store"
	"github.com/ayusman/drowsewatch/internal/tray"
)

const shutdownTimeout = 5 * time.Second

var (
	// Flags
	envFile = flag.String("env", ".env", "Optional .env file")
	source  = flag.String("source", "", "Camera index or video file, overrides DROWSE_CAMERA")
	noTray  = flag.Bool("no-tray", false, "Run without the system tray")
	live    = flag.Bool("live", false, "Start monitoring immediately")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drowsewatch: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Camera = *source
	}
	if *noTray {
		cfg.Tray = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "drowsewatch: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "drowsewatch: create data directory: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level: cfg.LogLevel,
		Dir:   cfg.LogDir,
		Env:   cfg.Environment,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "drowsewatch: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Drowsewatch - Driver Drowsiness Monitor")

	st, err := store.New(cfg.DBPath())
	if err != nil {
		logger.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	det, err := newDetector(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize detector: %v", err)
	}

	monitor, err := app.New(app.Config{
		Source:       cfg.Camera,
		Classifier:   cfg.Classifier(),
		PollInterval: cfg.PollInterval,
		Store:        st,
		Logger:       logger,
	}, capture.NewCamera(cfg.Camera), det)
	if err != nil {
		logger.Fatalf("Failed to create monitor: %v", err)
	}
	if err := monitor.Start(); err != nil {
		logger.Fatalf("Failed to start monitor: %v", err)
	}
	if *live {
		if err := monitor.SetLive(true); err != nil {
			logger.WithError(err).Error("failed to go live")
		}
	}

	// Find web directory
	webDir := findWebDir(cfg.DataDir)
	if webDir != "" {
		logger.WithField("dir", webDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Monitor:   monitor,
		Logger:    logger,
	})

	go func() {
		if err := srv.ListenAndServe(cfg.HTTPAddr); err != nil {
			logger.WithError(err).Error("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cfg.Tray {
		t := tray.New(monitor)
		t.OnDashboard(func() {
			if err := openBrowser(dashboardURL(cfg.HTTPAddr)); err != nil {
				logger.WithError(err).Warn("failed to open dashboard")
			}
		})
		t.OnError(func(err error) {
			logger.WithError(err).Warn("tray action failed")
		})
		go func() {
			<-sigChan
			t.Quit()
		}()
		// systray needs the main goroutine.
		t.Run()
	} else {
		<-sigChan
	}

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("server shutdown")
	}
	monitor.Stop()
}

// newDetector starts the MediaPipe face mesh detector, gated by a pigo face
// check when a cascade is configured.
func newDetector(cfg *config.Config, logger logrus.FieldLogger) (detector.Detector, error) {
	mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if cfg.FaceCascade == "" {
		return mp, nil
	}

	finder, err := detector.NewPigoFinder(cfg.FaceCascade)
	if err != nil {
		mp.Close()
		return nil, err
	}
	logger.WithField("cascade", cfg.FaceCascade).Info("face gate enabled")
	return detector.NewGatedDetector(mp, finder), nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
