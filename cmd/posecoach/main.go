package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/posecoach/internal/app"
	"github.com/ayusman/posecoach/internal/config"
	"github.com/ayusman/posecoach/internal/server"
	"github.com/ayusman/posecoach/internal/store"
	"github.com/ayusman/posecoach/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	headless := flag.Bool("headless", false, "run without the system tray")
	flag.Parse()

	fmt.Println("Posecoach - Real-time Pose Scoring")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Initialize the store
	dataDir := cfg.DataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		dataDir = filepath.Join(homeDir, ".posecoach")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dataDir, "posecoach.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	a := app.New(app.Config{
		Store:        st,
		PluginDir:    cfg.PluginDir,
		CameraID:     cfg.Capture.CameraID,
		MotionThresh: cfg.Capture.MotionThreshold,
		IdleFPS:      cfg.Capture.IdleFPS,
		ActiveFPS:    cfg.Capture.ActiveFPS,
		IdleTimeout:  time.Duration(cfg.Capture.IdleTimeoutMs) * time.Millisecond,
		Session:      cfg.SessionConfig(),
		Detector:     cfg.DetectorConfig(),
	})

	if err := a.DiscoverPlugins(); err != nil {
		log.Printf("Failed to discover plugins: %v", err)
	}
	if _, err := a.ImportTemplates(cfg.TemplatesDir); err != nil {
		log.Printf("Failed to import templates: %v", err)
	}
	if err := a.LoadTemplates(); err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	if err := a.Start(); err != nil {
		log.Printf("Camera unavailable, coaching paused: %v", err)
	}

	// Find web directory
	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		App:       a,
	})

	addr := cfg.Server.Addr
	go func() {
		fmt.Printf("Starting server on %s\n", addr)
		if err := srv.ListenAndServe(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if *headless {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
	} else {
		runTray(a, settingsURL(addr))
	}

	if err := a.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

// runTray blocks until the tray menu quits.
func runTray(a *app.App, url string) {
	t := tray.New()
	t.SetEnabled(a.IsEnabled())
	t.OnToggle(a.SetEnabled)
	t.OnCompleteStep(func() {
		if a.CurrentTemplate() == nil {
			return
		}
		if _, err := a.CompleteStep(); err != nil {
			log.Printf("Failed to complete step: %v", err)
		}
	})
	t.OnSettings(func() {
		if err := openBrowser(url); err != nil {
			log.Printf("Failed to open browser: %v", err)
		}
	})

	a.OnStep(func(step app.CompletedStep) {
		t.SetLastScore(step.PoseID, step.StableScore)
	})

	t.Run()
}

// settingsURL turns a listen address into a local URL.
func settingsURL(addr string) string {
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

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.posecoach/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".posecoach", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
