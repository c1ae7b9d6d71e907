package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meagle/internal/catalog"
	"meagle/internal/derivative"
	"meagle/internal/handlers"
	"meagle/internal/logging"
	"meagle/internal/media"
	"meagle/internal/middleware"
	"meagle/internal/probe"
	"meagle/internal/startup"
)

func main() {
	startTime := time.Now()

	// Optional .env file for local development
	if err := godotenv.Load(); err == nil {
		logging.Debug("loaded environment from .env")
	}

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	catStart := time.Now()
	cat, err := catalog.Open(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize catalog: %v", err)
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logging.Error("Failed to close catalog: %v", err)
		}
	}()
	startup.LogCatalogInit(time.Since(catStart))

	// Native RAW/HEIC decoding via libvips; extraction degrades
	// gracefully without it.
	nativeDecode := false
	if config.NativeDecode {
		if err := media.InitVips(); err != nil {
			logging.Warn("Native decoding unavailable: %v", err)
		} else {
			nativeDecode = true
			defer media.ShutdownVips()
		}
	}

	prober := probe.NewFFProber(config.ProbeTimeout)
	frames := probe.NewFFMpegExtractor(config.ProbeTimeout)
	pipeline := media.NewPipeline(prober, frames, nativeDecode)

	store := derivative.NewStore(config.StorageDir)

	h := handlers.New(cat, store, pipeline)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogBlobRequests = config.LogBlobRequests
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.APIPrefix(
		middleware.Logger(loggingConfig)(
			middleware.Metrics(middleware.DefaultMetricsConfig())(router)))

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // blob streams can outlive any fixed limit
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     metricsMux,
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")

	// Blob delivery
	r.HandleFunc("/media/{path:.*}", h.ServeMedia).Methods("GET", "HEAD")

	// Assets
	r.HandleFunc("/assets", h.UploadAsset).Methods("POST")
	r.HandleFunc("/assets", h.ListAssets).Methods("GET")
	r.HandleFunc("/assets/{id}", h.GetAsset).Methods("GET")
	r.HandleFunc("/assets/{id}", h.UpdateAsset).Methods("PUT")
	r.HandleFunc("/assets/{id}", h.DeleteAsset).Methods("DELETE")
	r.HandleFunc("/assets/{id}/download", h.DownloadAsset).Methods("GET")
	r.HandleFunc("/assets/{id}/preview", h.AssetPreview).Methods("GET", "HEAD")
	r.HandleFunc("/assets/{id}/annotations", h.ListAssetAnnotations).Methods("GET")
	r.HandleFunc("/assets/{id}/annotations", h.CreateAnnotation).Methods("POST")

	// Folders
	r.HandleFunc("/folders", h.ListFolders).Methods("GET")
	r.HandleFunc("/folders", h.CreateFolder).Methods("POST")
	r.HandleFunc("/folders/{id}", h.DeleteFolder).Methods("DELETE")

	// Tags
	r.HandleFunc("/tags", h.ListTags).Methods("GET")

	// Annotations
	r.HandleFunc("/annotations", h.ListAnnotationTexts).Methods("GET")
	r.HandleFunc("/annotations/{id}", h.DeleteAnnotation).Methods("DELETE")

	// Smart folders
	r.HandleFunc("/smart-folders", h.ListSmartFolders).Methods("GET")
	r.HandleFunc("/smart-folders", h.CreateSmartFolder).Methods("POST")
	r.HandleFunc("/smart-folders/{id}/assets", h.SmartFolderAssets).Methods("GET")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
