package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeweluxe/jeweluxe-golang/internal/ai"
	"github.com/jeweluxe/jeweluxe-golang/internal/cache"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/email"
	"github.com/jeweluxe/jeweluxe-golang/internal/events"
	"github.com/jeweluxe/jeweluxe-golang/internal/handlers"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/routes"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires every dependency, starts the background workers and serves
// until SIGINT or SIGTERM.
func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := appConfig
	log := logging.NewPackageLogger("main")

	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// 1. --- Main Database Connection (Read/Write) ---
	db, err := database.OpenDB(cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. --- Read-Only Connection (assistant) ---
	var dbReadOnly *sql.DB
	if cfg.DBDSNReadOnly != "" {
		dbReadOnly, err = database.OpenDB(cfg.DBDSNReadOnly)
		if err != nil {
			return err
		}
		defer dbReadOnly.Close()
	} else {
		log.Warn().Msg("DB_DSN_READONLY not set, the assistant shares the primary connection")
		dbReadOnly = db
	}

	// 3. --- Redis (cache + rate limits) ---
	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, caching and rate limits disabled")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// 4. --- AI Service Initialization ---
	var aiService *ai.AIService
	if cfg.GeminiAPIKey != "" {
		aiService, err = ai.NewAIService(cfg.GeminiAPIKey, cfg.GeminiModel, dbReadOnly)
		if err != nil {
			return err
		}
		defer aiService.Close()
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, the shopping assistant is disabled")
	}

	mailer := email.NewSender(cfg.SMTP)
	app := &handlers.Handlers{
		DB:         db,
		DBReadOnly: dbReadOnly,
		Config:     cfg,
		Cache:      rdb,
		Events:     events.NewPublisher(cfg.RabbitMQURL),
		Mailer:     mailer,
		AIService:  aiService,
	}

	// 5. --- Background Workers ---
	if cfg.RabbitMQURL != "" {
		go events.StartOrderConsumer(ctx, cfg.RabbitMQURL, mailer)
	}
	go runSweeper(ctx, app, cfg.SweepInterval)

	// 6. --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.SetupRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("starting Jeweluxe API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDrain()
	if werr := app.WaitBackground(drainCtx); werr != nil {
		log.Warn().Err(werr).Msg("order events still publishing at exit")
	}
	return err
}

// runSweeper cancels overdue unpaid orders every interval.
func runSweeper(ctx context.Context, app *handlers.Handlers, interval time.Duration) {
	log := logging.NewPackageLogger("sweeper")
	if interval <= 0 {
		log.Warn().Msg("sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("monitoring for overdue orders")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.ProcessOverdueOrders(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("overdue order sweep failed")
			}
		}
	}
}
