package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"classd/internal/classifier"
	"classd/internal/config"
	"classd/internal/holder"
	"classd/internal/httpapi"
	"classd/internal/registry"
	"classd/internal/service"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      config.Config
		corsCSV    string
	)

	root := &cobra.Command{
		Use:           "classd",
		Short:         "Text classification server with hot-swappable models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", envStr("CLASSD_CONFIG", ""), "Path to a yaml/json/toml config file")
	pf.StringVar(&flags.Addr, "addr", envStr("CLASSD_ADDR", ""), "HTTP listen address, e.g. :8080")
	pf.StringVar(&flags.ManifestsDir, "manifests-dir", envStr("CLASSD_MANIFESTS_DIR", ""), "Directory to scan for *.json model manifests")
	pf.StringVar(&flags.DefaultModel, "default-model", envStr("CLASSD_DEFAULT_MODEL", ""), "Model id to activate at startup")
	pf.IntVar(&flags.CacheSize, "cache-size", 0, "Warm cache capacity including the active model")
	pf.IntVar(&flags.MaxTextLen, "max-text-len", 0, "Maximum accepted input text length in characters")
	pf.IntVar(&flags.SwitchTimeoutSec, "switch-timeout-sec", 0, "Bound on a model switch in seconds")
	pf.StringVar(&flags.OnnxLibraryPath, "onnx-library", envStr("CLASSD_ONNX_LIBRARY", ""), "Path to the ONNX Runtime shared library")
	pf.StringVar(&flags.LogLevel, "log-level", envStr("CLASSD_LOG_LEVEL", ""), "Log level: debug|info|warn|error")
	pf.BoolVar(&flags.CORSEnabled, "cors", false, "Enable CORS middleware")
	pf.StringVar(&corsCSV, "cors-origins", envStr("CLASSD_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins")

	loadMerged := func() (config.Config, error) {
		cfg := config.Config{}
		if configPath != "" {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return cfg, fmt.Errorf("load config: %w", err)
			}
		}
		mergeConfig(&cfg, flags)
		if origins := splitCSV(corsCSV); len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
		applyDefaults(&cfg)
		return cfg, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadMerged()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List the models found in the manifests directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadMerged()
			if err != nil {
				return err
			}
			descs, err := registry.LoadDir(cfg.ManifestsDir)
			if err != nil {
				return fmt.Errorf("load manifests: %w", err)
			}
			for _, d := range descs {
				fmt.Printf("%-20s %-18s %-12s %s\n", d.ID, d.Backend, d.Scheme.Kind, strings.Join(d.Scheme.Labels, ","))
			}
			return nil
		},
	}

	root.AddCommand(serveCmd, modelsCmd)
	root.RunE = serveCmd.RunE
	return root
}

// mergeConfig overlays non-zero flag values onto the file config.
func mergeConfig(cfg *config.Config, flags config.Config) {
	if flags.Addr != "" {
		cfg.Addr = flags.Addr
	}
	if flags.ManifestsDir != "" {
		cfg.ManifestsDir = flags.ManifestsDir
	}
	if flags.DefaultModel != "" {
		cfg.DefaultModel = flags.DefaultModel
	}
	if flags.CacheSize > 0 {
		cfg.CacheSize = flags.CacheSize
	}
	if flags.MaxTextLen > 0 {
		cfg.MaxTextLen = flags.MaxTextLen
	}
	if flags.SwitchTimeoutSec > 0 {
		cfg.SwitchTimeoutSec = flags.SwitchTimeoutSec
	}
	if flags.OnnxLibraryPath != "" {
		cfg.OnnxLibraryPath = flags.OnnxLibraryPath
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if flags.CORSEnabled {
		cfg.CORSEnabled = true
	}
}

func applyDefaults(cfg *config.Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ManifestsDir == "" {
		cfg.ManifestsDir = "~/models/manifests"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func runServe(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	descs, err := registry.LoadDir(cfg.ManifestsDir)
	if err != nil {
		return fmt.Errorf("load manifests: %w", err)
	}
	reg := registry.New()
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("register model: %w", err)
		}
	}
	log.Info().Int("models", reg.Len()).Str("dir", cfg.ManifestsDir).Msg("registry loaded")

	loader := classifier.NewLoader(classifier.LoaderConfig{
		Logger:          log,
		OnnxLibraryPath: cfg.OnnxLibraryPath,
	})
	h := holder.New(holder.Config{
		Registry:      reg,
		Loader:        loader,
		Logger:        log,
		CacheSize:     cfg.CacheSize,
		SwitchTimeout: time.Duration(cfg.SwitchTimeoutSec) * time.Second,
	})
	svc := service.New(service.Config{
		Logger:     log,
		Holder:     h,
		MaxTextLen: cfg.MaxTextLen,
	})

	// Base context canceled on shutdown so in-flight work stops too.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{"GET", "POST", "OPTIONS"},
		[]string{"Accept", "Content-Type", "X-Log-Level"})

	if cfg.DefaultModel != "" {
		// A broken default model must not prevent startup; the server comes
		// up not-ready and a later switch can still succeed.
		if _, err := h.Switch(baseCtx, cfg.DefaultModel); err != nil {
			log.Warn().Err(err).Str("model", cfg.DefaultModel).Msg("default model activation failed")
		}
	}

	mux := httpapi.NewMux(svc)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("classd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
