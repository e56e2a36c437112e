package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/app"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/backup"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/cache"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/config"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/docstore"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/search"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: could not read .env file: %v", err)
	}
	cfg := config.Load()
	ctx := context.Background()

	var store docstore.Store
	switch cfg.StoreBackend {
	case "git":
		store = docstore.NewGitStore(cfg.GitDir, "crm")
	case "github":
		if cfg.GitHubOwner == "" || cfg.GitHubRepo == "" {
			log.Fatal("CRM_GITHUB_OWNER and CRM_GITHUB_REPO are required for the github backend")
		}
		store = docstore.NewGitHubStore(docstore.GitHubConfig{
			Token:  cfg.GitHubToken,
			Owner:  cfg.GitHubOwner,
			Repo:   cfg.GitHubRepo,
			Path:   cfg.GitHubPath,
			Branch: cfg.GitHubBranch,
		})
	default:
		log.Fatalf("unknown store backend %q", cfg.StoreBackend)
	}

	var docCache *cache.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		c, err := cache.New(cfg.RedisURL, "crm:document", cfg.CacheTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		docCache = c
		defer docCache.Close()
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemory())

	var backupService *backup.Service
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		b, err := backup.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object store connection failed: %v", err)
		}
		backupService = b
	}

	service := app.New(cfg, app.Deps{
		Store:  store,
		Cache:  docCache,
		Search: searchService,
		Backup: backupService,
	})
	if _, _, err := service.LoadRemote(ctx); err != nil {
		log.Printf("WARNING: initial load failed (starting with empty document): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("CRM API listening on %s (store backend: %s)", cfg.Addr, cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
