package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"cinescope/api"
	"cinescope/config"
	"cinescope/handlers"
	"cinescope/services/explore"
	"cinescope/services/metadata"
	"cinescope/services/search"
	"cinescope/services/sessions"
	"cinescope/services/stream"
	"cinescope/utils"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	clearCache := flag.Bool("clear-cache", false, "remove cached metadata and images, then exit")
	flag.Parse()

	fmt.Println("🎬 cinescope starting...")

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("Warning: could not load .env: %v", err)
	}

	// Determine config path (env or default)
	configPath := os.Getenv("CINESCOPE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	logger := setupLogging(settings.Log)

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	metadataSvc := metadata.NewService(settings.Metadata, settings.Cache)
	imageHandler := handlers.NewImageHandler(afero.NewOsFs(), settings.Cache.Directory, settings.Metadata.ImageBaseURL, "img.youtube.com")

	if *clearCache {
		if err := metadataSvc.ClearCache(); err != nil {
			log.Printf("clear metadata cache: %v", err)
		}
		if err := imageHandler.ClearCache(); err != nil {
			log.Printf("clear image cache: %v", err)
		}
		fmt.Println("🧹 Cache cleared")
		return
	}

	if !metadataSvc.Configured() {
		log.Println("⚠️  No TMDB API key configured; set TMDB_API_KEY or metadata.tmdbApiKey in", cfgManager.Path())
	}

	embedder := stream.NewEmbedder(settings.Stream.EmbedBaseURL)
	registry := explore.NewRegistry(settings.Explore)

	idle := time.Duration(settings.Sessions.IdleTimeoutMinutes) * time.Minute
	exploreSessions := sessions.NewStore[*explore.Session]("explore", idle)
	searchSessions := sessions.NewStore[*search.Session]("search", idle)

	pagesHandler, err := handlers.NewPagesHandler(metadataSvc, registry, embedder)
	if err != nil {
		log.Fatalf("failed to parse page templates: %v", err)
	}

	limiter := api.NewIPRateLimiter(rate.Limit(settings.RateLimit.RequestsPerSecond), settings.RateLimit.Burst)
	limiter.TrustProxyHeaders(settings.RateLimit.TrustProxy)

	r := utils.NewRouter(logger)
	api.Register(r, api.Handlers{
		Pages:    pagesHandler,
		Metadata: handlers.NewMetadataHandler(metadataSvc, embedder),
		Explore:  handlers.NewExploreHandler(metadataSvc, registry, exploreSessions),
		Search:   handlers.NewSearchHandler(metadataSvc, searchSessions, time.Duration(settings.Search.DebounceMillis)*time.Millisecond),
		Images:   imageHandler,
	}, limiter)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Sessions go after the server so no handler can touch a closed store.
	exploreSessions.Shutdown()
	searchSessions.Shutdown()
	limiter.Stop()

	log.Println("✅ Shutdown complete")
}

// setupLogging points the standard logger and slog at stdout plus a rotating
// file when one is configured.
func setupLogging(cfg config.LogConfig) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		logDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}
			out = io.MultiWriter(os.Stdout, fileWriter)
		}
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Level)}))
	slog.SetDefault(logger)
	if cfg.File != "" {
		log.Printf("Logging to file: %s", cfg.File)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
