package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/api"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/db"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/logging"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/progress"
	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/ui"
)

const shutdownTimeout = 10 * time.Second

func NewServeCmd(deps *Dependencies) *cobra.Command {
	var (
		port     int
		headless bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editor agent and its local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := serveOptions{port: deps.Config.Port(), headless: deps.Config.Headless()}
			if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
				opts.port = port
			}
			if f := cmd.Flags().Lookup("headless"); f != nil && f.Changed {
				opts.headless = headless
			}
			return runServe(cmd.Context(), deps, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "API port on 127.0.0.1")
	cmd.Flags().BoolVar(&headless, "headless", false, "run without the system tray")
	return cmd
}

type serveOptions struct {
	port     int
	headless bool
}

func runServe(ctx context.Context, deps *Dependencies, opts serveOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()
	cfg := deps.Config
	logger := deps.Logger

	for _, dir := range []string{cfg.DataDir(), cfg.ExportDir(), cfg.WorkDir(), cfg.ThumbnailsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger.Info("starting clipforge agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"export_dir", logging.SanitizePath(cfg.ExportDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())
	authToken, err := ensureAuthToken(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	engine := deps.engine()
	doctor := ffmpeg.NewCachedDoctor(deps.prober(), logging.WithComponent(logger, "doctor"))
	go func() {
		// Missing binaries degrade /status; they never stop the agent.
		if caps, err := doctor.Refresh(ctx); err != nil {
			logger.Warn("initial doctor probe failed", "error", err)
		} else if !caps.Ready() {
			logger.Warn("ffmpeg tools unavailable, imports and exports will fail",
				"ffmpeg", caps.FFmpeg.Error, "ffprobe", caps.FFprobe.Error)
		}
	}()

	importer := media.NewImporter(engine, media.Config{
		ThumbnailDir:  cfg.ThumbnailsDir(),
		ImageDuration: cfg.ImageDuration(),
		Logger:        logging.WithComponent(logger, "media"),
	})
	projects := project.NewService(repo, importer, logging.WithComponent(logger, "projects"))
	hub := progress.NewHub(logging.WithComponent(logger, "progress"))
	exports := jobs.NewManager(engine, jobs.NewRepository(database.Conn()), hub, jobs.Config{
		OutputDir:   cfg.ExportDir(),
		WorkDir:     cfg.WorkDir(),
		MaxParallel: cfg.MaxParallel(),
		StepTimeout: cfg.StepTimeout(),
		Logger:      logging.WithComponent(logger, "exports"),
	})

	apiServer := api.NewServer(api.ServerConfig{
		Port:      opts.port,
		Projects:  projects,
		Exports:   exports,
		Hub:       hub,
		Doctor:    doctor,
		Tokens:    repo,
		ExportDir: cfg.ExportDir(),
		Logger:    logging.WithComponent(logger, "api"),
		StartTime: startTime,
		Version:   config.Version,
	})

	printBanner(out, apiServer.Addr(), authToken, cfg.ExportDir())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	quitCh := make(chan struct{})
	var tray *ui.Tray
	if opts.headless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Exports: exports,
			Logger:  logging.WithComponent(logger, "tray"),
			Addr:    apiServer.Addr(),
			OnOpen: func() {
				if err := openFolder(cfg.ExportDir()); err != nil {
					logger.Warn("failed to open exports folder", "error", err)
				}
			},
			OnQuit: func() { close(quitCh) },
		})
		go tray.Run()
	}

	var runErr error
	select {
	case <-sigCtx.Done():
		logger.Info("received shutdown signal")
	case <-quitCh:
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("HTTP server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown", "running_exports", exports.ActiveCount())
	if tray != nil {
		tray.Quit()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := exports.Shutdown(shutdownCtx); err != nil {
		logger.Error("exports did not stop in time", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// ensureAuthToken returns the stored API token, generating one on first run.
func ensureAuthToken(ctx context.Context, repo project.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}
	return token, nil
}

func printBanner(w io.Writer, addr, token, exportDir string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  %-76s║\n", "CLIPFORGE v"+config.Version)
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  API URL:    %-64s║\n", "http://"+addr)
	fmt.Fprintf(w, "║  Auth Token: %-64s║\n", token)
	fmt.Fprintf(w, "║  Exports:    %-64s║\n", logging.SanitizePath(exportDir))
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}

func openFolder(dir string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	return cmd.Start()
}
