package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"couple-notes-backend/internal/config"
	"couple-notes-backend/internal/handlers"
	"couple-notes-backend/internal/metrics"
	"couple-notes-backend/internal/repository"
	"couple-notes-backend/internal/repository/memory"
	"couple-notes-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

type stores struct {
	profiles services.ProfileStore
	notes    services.NoteStore
	tasks    services.TaskStore
	widgets  services.WidgetStore
	close    func()
}

// openStores connects the configured storage driver
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &stores{
			profiles: store.Profiles(),
			notes:    store.Notes(),
			tasks:    store.Tasks(),
			widgets:  store.Widgets(),
			close:    func() {},
		}, nil
	}

	if cfg.Database.MigrateOnStart {
		if err := repository.Migrate(cfg.Database.MigrateURL()); err != nil {
			return nil, err
		}
		log.Info().Msg("Database migrations applied")
	}

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test database connection
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	return &stores{
		profiles: repository.NewProfileRepository(db),
		notes:    repository.NewNoteRepository(db),
		tasks:    repository.NewTaskRepository(db),
		widgets:  repository.NewWidgetRepository(db),
		close:    db.Close,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	jwtSecret := ""
	if cfg.Auth.Enabled() {
		jwtSecret = cfg.JWT.Secret
	}

	// Initialize services
	hub := services.NewWSHub()
	svc := handlers.Services{
		Profiles: services.NewProfileService(st.profiles, jwtSecret),
		Partners: services.NewPartnerService(st.profiles, hub),
		Notes:    services.NewNoteService(st.notes, st.profiles, hub),
		Tasks:    services.NewTaskService(st.tasks),
		Widgets:  services.NewWidgetService(st.widgets, st.notes, st.profiles, hub),
		Hub:      hub,
	}

	if cfg.AWS.UploadsEnabled() {
		uploads, err := services.NewUploadService(ctx, st.profiles, services.UploadConfig{
			Region:    cfg.AWS.Region,
			Bucket:    cfg.AWS.S3Bucket,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
			PublicURL: cfg.AWS.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create upload service: %w", err)
		}
		svc.Uploads = uploads
	} else {
		log.Info().Msg("No S3 bucket configured, image uploads disabled")
	}

	opts := handlers.RouterOptions{
		AuthEnabled: cfg.Auth.Enabled(),
		RequestLog:  cfg.Log.Level == "debug",
	}
	if cfg.Metrics.Enabled {
		metrics.Init()
		opts.MetricsPath = cfg.Metrics.Path
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handlers.NewRouter(svc, opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("address", srv.Addr).
			Str("storage", cfg.Storage.Driver).
			Str("auth", cfg.Auth.Mode).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal for graceful shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
		case <-gCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server exited")
	return nil
}
