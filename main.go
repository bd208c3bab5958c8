package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notesync/config"
	"notesync/config/database"
	"notesync/internal/note/repository"
	"notesync/internal/note/service"
	"notesync/middleware"
	"notesync/pkg/logger"
	"notesync/router"
	"notesync/socket"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	// The hub fans mutation events out to every channel session; the note
	// service is both its publisher and the applier for channel updates.
	hub := socket.NewHub()
	noteService := service.NewNoteService(repo, hub, cfg.Delivery)
	hub.SetApplier(noteService)
	go hub.Run(ctx)

	handler := router.Setup(hub, noteService, router.Options{
		Auth: middleware.AuthConfig{
			Required:  cfg.AuthRequired,
			PublicKey: cfg.PublicKey,
			Secret:    cfg.JWTSecret,
		},
		CORSOrigin: cfg.CORSOrigin,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("Notes backend listening on %s (auth required: %t, delivery: %s)",
			cfg.Addr(), cfg.AuthRequired, cfg.Delivery)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (service.NoteRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewGormNoteRepository(db)
		if err := repo.Migrate(); err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return repo, closeFn, nil

	default:
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewNoteRepository(db), func() { db.Close() }, nil
	}
}
