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

	"github.com/SabarathinamR/FinalJob/internal/app"
	"github.com/SabarathinamR/FinalJob/internal/archive"
	"github.com/SabarathinamR/FinalJob/internal/audit"
	"github.com/SabarathinamR/FinalJob/internal/auth"
	"github.com/SabarathinamR/FinalJob/internal/config"
	"github.com/SabarathinamR/FinalJob/internal/email"
	"github.com/SabarathinamR/FinalJob/internal/export"
	"github.com/SabarathinamR/FinalJob/internal/search"
	"github.com/SabarathinamR/FinalJob/internal/session"
	"github.com/SabarathinamR/FinalJob/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.AuditDir, 0o755); err != nil {
		log.Fatalf("failed to create audit dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	auditTrail := audit.New(cfg.AuditDir)
	renderer := export.NewService()

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Printf("WARNING: SMTP not configured, approval emails disabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgLike(db))

	var service *app.Service
	if strings.TrimSpace(cfg.ArchiveEndpoint) != "" {
		archiveService, err := archive.New(ctx, cfg.ArchiveEndpoint, cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, cfg.ArchiveBucket, cfg.ArchiveUseSSL)
		if err != nil {
			log.Fatalf("archive connection failed: %v", err)
		}
		service = app.New(cfg, dataStore, mailer, renderer, auditTrail, archiveService, searchService)
	} else {
		log.Printf("WARNING: archive not configured, finalized PDFs go to HR by email only")
		service = app.New(cfg, dataStore, mailer, renderer, auditTrail, nil, searchService)
	}

	sessionStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer sessionStore.Close()

	authService, err := auth.NewService(cfg.AppUsername, cfg.AppPassword, sessionStore)
	if err != nil {
		log.Fatalf("auth setup failed: %v", err)
	}

	httpServer := app.NewHTTPServer(service, authService, cfg.CORSOrigin, cfg.SessionTTL)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Job sheet API listening on %s", cfg.Addr)
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
