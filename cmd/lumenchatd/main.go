package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumenchat/lumenchat/internal/chat"
	chatpostgres "github.com/lumenchat/lumenchat/internal/chat/postgres"
	chatsqlite "github.com/lumenchat/lumenchat/internal/chat/sqlite"
	"github.com/lumenchat/lumenchat/internal/config"
	"github.com/lumenchat/lumenchat/internal/httpserver"
	"github.com/lumenchat/lumenchat/internal/logging"
	"github.com/lumenchat/lumenchat/internal/modelmeta"
	"github.com/lumenchat/lumenchat/internal/provider"
	provideranthropic "github.com/lumenchat/lumenchat/internal/provider/anthropic"
	provideropenai "github.com/lumenchat/lumenchat/internal/provider/openai"
	"github.com/lumenchat/lumenchat/internal/provider/registry"
	"github.com/lumenchat/lumenchat/internal/storage"
	"github.com/lumenchat/lumenchat/internal/stream"
	"github.com/lumenchat/lumenchat/internal/version"
)

const maxLogBytes = int64(100 * 1024 * 1024) // 100MB per log file

func main() {
	root := &cobra.Command{
		Use:          "lumenchatd",
		Short:        "lumenchat streaming chat backend",
		SilenceUsage: true,
	}

	var configPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serve.Flags().StringVarP(&configPath, "config", "c", "lumenchat.yaml", "path to config file")

	root.AddCommand(serve)
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullInfo())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if target := strings.TrimSpace(cfg.LogFile); target != "" {
		rot, err := logging.NewRotatingWriter(target, maxLogBytes)
		if err != nil {
			return fmt.Errorf("init rotating log: %w", err)
		}
		defer rot.Close()
		// Mirror to stdout for foreground runs.
		log.SetOutput(io.MultiWriter(os.Stdout, rot))
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("[lumenchatd] ")
	log.Printf("starting %s", version.FullInfo())

	var store chat.Store
	switch cfg.Store {
	case "postgres":
		store, err = chatpostgres.New(cfg.PostgresDSN)
	default:
		store, err = chatsqlite.New(cfg.SQLitePath)
	}
	if err != nil {
		return fmt.Errorf("open chat store: %w", err)
	}
	defer store.Close()

	files, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		return fmt.Errorf("open file storage: %w", err)
	}

	models := modelmeta.NewStore()
	if cfg.ModelMetaPath != "" {
		n, err := models.Load(cfg.ModelMetaPath)
		if err != nil {
			log.Printf("model metadata load failed (%s): %v", cfg.ModelMetaPath, err)
		} else {
			log.Printf("model metadata loaded entries=%d path=%s", n, cfg.ModelMetaPath)
		}
	}

	var providers []provider.Provider
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		oa, err := provideropenai.New(provideropenai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Organization:   cfg.OpenAIOrg,
			FileBaseURL:    cfg.FileBaseURL,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			return fmt.Errorf("init openai adapter: %w", err)
		}
		providers = append(providers, oa)
	}
	if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
		an, err := provideranthropic.New(provideranthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			BaseURL:        cfg.AnthropicBaseURL,
			Version:        cfg.AnthropicVersion,
			FileBaseURL:    cfg.FileBaseURL,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			return fmt.Errorf("init anthropic adapter: %w", err)
		}
		providers = append(providers, an)
	}
	reg, err := registry.New(providers...)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}
	log.Printf("providers registered: %s", strings.Join(reg.Names(), ", "))

	orch := stream.New(store, reg, models, files, cfg.FileBaseURL, log.Default())

	srv := httpserver.New(httpserver.Config{
		Store:    store,
		Orch:     orch,
		Registry: reg,
		Models:   models,
		FilesDir: files.Dir(),
		Logger:   log.Default(),
		LogLevel: cfg.LogLevel,
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("shutdown complete")
	return nil
}
