package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/imgfit/imgfit/internal/cli/ui"
	"github.com/imgfit/imgfit/internal/config"
	"github.com/imgfit/imgfit/internal/origin"
	"github.com/imgfit/imgfit/internal/scaler"
	"github.com/imgfit/imgfit/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the image server",
	Long: `Start serving images. Requests for name_WxH-flags.ext are answered by
scaling the original name.jpg, name.png or name.gif from the origin.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().String("config", "", "Path to imgfit.toml config file")
	startCmd.Flags().Int("port", 0, "Server port (default 8095)")
	startCmd.Flags().String("host", "", "Server host (default 0.0.0.0)")
	startCmd.Flags().String("origin", "", "Directory of original images (selects the local backend)")
	startCmd.Flags().String("prefix", "", "Path images are served under (default /)")
}

func runStart(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	// Load config (defaults → file → env → flags).
	cfg, err := config.Load(configPath, changedFlags(cmd.Flags(), "port", "host", "origin", "prefix"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	isTTY := ui.ColorEnabled()
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	sp := ui.NewStepSpinner(os.Stderr, !isTTY)
	step := func(msg string, fn func() error) error {
		if !isTTY {
			return fn()
		}
		return sp.Run(msg, fn)
	}

	var backend origin.Backend
	if err := step("Opening origin", func() error {
		var err error
		backend, err = buildBackend(ctx, cfg)
		return err
	}); err != nil {
		return err
	}

	matcher, err := scaler.NewPatternMatcher(cfg.Scaler.Match)
	if err != nil {
		return err
	}

	cropper := scaler.ProbeCropper(cfg.Scaler.PostCrop, cfg.Scaler.JPEGQuality, logger)
	if isTTY && !cropper.Available() {
		sp.Warn("Post-crop", "oversized results are returned uncropped")
	}

	mw := scaler.New(scalerConfig(cfg, matcher, cropper), logger)
	srv := server.New(cfg, logger, mw, backend)

	errCh := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		errCh <- srv.StartWithReady(ready)
	}()

	select {
	case <-ready:
	case err := <-errCh:
		return portError(cfg.Server.Port, err)
	}

	if isTTY {
		fmt.Fprint(os.Stderr, ui.Banner(buildVersion, bannerFields(cfg, cropper), true))
	}

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
		signal.Stop(sigCh) // Second Ctrl-C triggers Go default (immediate exit).
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		return nil
	}
}

// buildBackend opens the configured origin.
func buildBackend(ctx context.Context, cfg *config.Config) (origin.Backend, error) {
	switch cfg.Origin.Backend {
	case "s3":
		b, err := origin.NewS3Backend(ctx, origin.S3Config{
			Endpoint:  cfg.Origin.S3Endpoint,
			Bucket:    cfg.Origin.S3Bucket,
			Region:    cfg.Origin.S3Region,
			AccessKey: cfg.Origin.S3AccessKey,
			SecretKey: cfg.Origin.S3SecretKey,
			UseSSL:    cfg.Origin.S3UseSSL,
			Prefix:    cfg.Origin.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to s3 origin: %w", err)
		}
		return b, nil
	default:
		b, err := origin.NewLocalBackend(cfg.Origin.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("opening origin: %w", err)
		}
		return b, nil
	}
}

// scalerConfig maps the [scaler] section onto the middleware configuration.
func scalerConfig(cfg *config.Config, matcher scaler.PathMatcher, cropper scaler.CropCapability) scaler.Config {
	sc := scaler.Config{
		Matcher:            matcher,
		OriginalExtensions: cfg.Scaler.OriginalExtensions,
		MemoryLimit:        cfg.Scaler.MemoryLimit,
		JPEGQuality:        cfg.Scaler.JPEGQuality,
		Overrides: scaler.Overrides{
			Width:  cfg.Scaler.Width,
			Height: cfg.Scaler.Height,
		},
		Cropper: cropper,
	}
	if cfg.Scaler.Flags != nil {
		flags := make(scaler.FlagSet, len(cfg.Scaler.Flags))
		for k, v := range cfg.Scaler.Flags {
			flags[k] = v
		}
		sc.Overrides.Flags = flags
	}
	return sc
}

func bannerFields(cfg *config.Config, cropper scaler.CropCapability) []ui.BannerField {
	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	prefix := cfg.Server.Prefix
	if prefix == "" {
		prefix = "/"
	}
	src := "local " + cfg.Origin.LocalPath
	if cfg.Origin.Backend == "s3" {
		src = "s3 " + cfg.Origin.S3Bucket
		if cfg.Origin.S3Prefix != "" {
			src += "/" + strings.Trim(cfg.Origin.S3Prefix, "/")
		}
	}
	crop := "enabled"
	if !cropper.Available() {
		crop = "unavailable"
	}
	fields := []ui.BannerField{
		{Label: "Images", Value: fmt.Sprintf("http://%s:%d%s", host, cfg.Server.Port, prefix)},
		{Label: "Origin", Value: src},
		{Label: "Extensions", Value: strings.Join(cfg.Scaler.OriginalExtensions, ", ")},
		{Label: "Post-crop", Value: crop},
	}
	if cfg.Metrics.Enabled {
		fields = append(fields, ui.BannerField{Label: "Metrics", Value: fmt.Sprintf("http://%s:%d%s", host, cfg.Server.Port, cfg.Metrics.Path)})
	}
	return fields
}

func portError(port int, err error) error {
	if strings.Contains(err.Error(), "address already in use") {
		return fmt.Errorf("port %d is already in use: %w", port, err)
	}
	return err
}

// newLogger builds the process logger. Format "auto" picks text on a
// terminal and JSON otherwise.
func newLogger(level, format string, out *os.File) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseSlogLevel(level)}
	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func parseSlogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
