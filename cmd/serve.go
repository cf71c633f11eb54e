package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/minigames/assets"
	"github.com/robalobadob/minigames/internal/config"
	"github.com/robalobadob/minigames/internal/generate"
	"github.com/robalobadob/minigames/internal/httpserver"
	"github.com/robalobadob/minigames/internal/storage"
	"github.com/robalobadob/minigames/internal/store"
	"github.com/robalobadob/minigames/internal/words"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := words.Init(); err != nil {
		return fmt.Errorf("load word list: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []httpserver.Option
	if cfg.OpenAI.APIKey != "" {
		gen, err := newGenerator(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, httpserver.WithGenerator(gen))
		log.Info().Str("model", gen.Model()).Msg("game generation enabled")
	} else {
		log.Info().Msg("OPENAI_API_KEY not set, game generation disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(cfg, store.NewMemoryStore(), db, opts...)
	log.Info().
		Str("port", cfg.HTTP.Port).
		Str("env", cfg.Env).
		Int("words", words.Stats()).
		Msg("starting minigames server")
	if err := srv.Start(ctx, ":"+cfg.HTTP.Port); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// openDB opens the configured database and applies pending migrations.
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applied, err := storage.Migrate(db, assets.Migrations())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		log.Info().Strs("migrations", applied).Msg("database migrated")
	}
	return db, nil
}

func newGenerator(cfg *config.Config) (*generate.Generator, error) {
	return generate.New(generate.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	})
}
