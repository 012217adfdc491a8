package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/mindengage-quiz/internal/api/http"
	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/config"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/logging"
	"github.com/mind-engage/mindengage-quiz/internal/storage"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

func main() {
	cfg := config.Load()
	logger := logging.New("quizd", cfg.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.Error("quizd stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return err
	}
	defer dbh.Close()

	users := auth.NewUserStore(dbh)
	if cfg.SeedAdmin {
		if err := users.SeedAdmin(openCtx, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			return err
		}
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath, "/assets")
	if err != nil {
		return err
	}
	events := syncx.NewEventRepo(dbh, string(cfg.Mode))

	handler := api.NewRouter(api.Deps{
		Store:      exam.NewSQLStore(dbh, cfg.DBDriver),
		Users:      users,
		Auth:       auth.NewAuthService(cfg.AuthSecret),
		Blobs:      bs,
		Events:     events,
		Feed:       events,
		Grader:     grading.NewGrader(cfg.GraderOptions()...),
		Log:        logger,
		Origins:    cfg.CORSOrigins(),
		RequestLog: true,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("could not stop server gracefully", "err", err)
			return server.Close()
		}
		return nil
	})
	return g.Wait()
}
