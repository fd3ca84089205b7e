package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"medcase-engine/internal/app"
	"medcase-engine/internal/config"
	"medcase-engine/internal/domain"
	"medcase-engine/internal/infra/memory"
	pgloader "medcase-engine/internal/infra/postgres"
	redisinfra "medcase-engine/internal/infra/redis"
	"medcase-engine/internal/logging"
	transport "medcase-engine/internal/transport/http"
	"medcase-engine/internal/tutor"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Redis.SessionTTL, 30*time.Minute)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var caseLoader memory.CaseLoader
	var eventLoader memory.EventLoader
	if pool != nil {
		loader := pgloader.NewCatalogLoader(pool)
		caseLoader, eventLoader = loader, loader
	} else {
		loader := memory.NewStaticCatalogLoader(sampleCases(), sampleEvents())
		caseLoader, eventLoader = loader, loader
	}

	var cases app.CaseCatalog
	var events app.EventCatalog
	var ledger app.LedgerStore
	var attempts app.AttemptStore
	var participations app.ParticipationStore
	var rankings app.RankingStore
	var sessions app.SessionRegistry
	if redisClient != nil {
		cases = redisinfra.NewCaseCatalog(redisClient, caseLoader, catalogTTL)
		events = redisinfra.NewEventCatalog(redisClient, eventLoader, catalogTTL)
		ledger = redisinfra.NewLedgerStore(redisClient)
		attempts = redisinfra.NewAttemptStore(redisClient)
		participations = redisinfra.NewParticipationStore(redisClient)
		rankings = redisinfra.NewRankingStore(redisClient)
		sessions = redisinfra.NewSessionRegistry(redisClient, sessionTTL)
	} else {
		cases = memory.NewCaseCatalog(caseLoader, catalogTTL)
		events = memory.NewEventCatalog(eventLoader, catalogTTL)
		ledger = memory.NewLedgerStore()
		attempts = memory.NewAttemptStore()
		participations = memory.NewParticipationStore()
		rankings = memory.NewRankingStore()
		sessions = memory.NewSessionRegistry()
	}

	hints, err := buildHintGateway(cfg)
	if err != nil {
		return err
	}

	engine := app.NewEngine(cases, attempts, ledger, hints, sessions)
	tracker := app.NewProgressTracker(events, participations, rankings)
	wsHandler := transport.NewWSHandler(engine, tracker, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting assessment engine", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildHintGateway(cfg config.Config) (app.HintGateway, error) {
	switch cfg.Tutor.Provider {
	case "", "static":
		return tutor.NewStaticGateway(), nil
	case "anthropic":
		keyEnv := cfg.Tutor.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "ANTHROPIC_API_KEY"
		}
		return tutor.NewAnthropicGateway(tutor.AnthropicConfig{
			APIKey:    os.Getenv(keyEnv),
			Model:     cfg.Tutor.Model,
			MaxTokens: cfg.Tutor.MaxTokens,
		})
	default:
		return nil, errors.New("unknown tutor provider: " + cfg.Tutor.Provider)
	}
}

// sampleCases provides minimal demo content; production loads JSONB from Postgres.
func sampleCases() map[string]domain.Case {
	return map[string]domain.Case{
		"case-1": {
			ID:         "case-1",
			BasePoints: 100,
			Options: [domain.OptionCount]string{
				"Community-acquired pneumonia",
				"Pulmonary embolism",
				"Acute bronchitis",
				"Congestive heart failure",
			},
			CorrectOptionIndex: 1,
			EliminationPenalty: 10,
			SkipPenalty:        0,
			Explanation:        "Sudden pleuritic chest pain with hypoxia after immobilization points to pulmonary embolism.",
			ShortTips: [domain.OptionCount]string{
				"Fever and productive cough dominate here.",
				"Consider the recent long-haul flight.",
				"Usually follows an upper respiratory infection.",
				"Look for volume overload signs.",
			},
		},
		"case-2": {
			ID:         "case-2",
			BasePoints: 150,
			Options: [domain.OptionCount]string{
				"Appendicitis",
				"Cholecystitis",
				"Ectopic pregnancy",
				"Renal colic",
			},
			CorrectOptionIndex: 2,
			EliminationPenalty: 15,
			SkipPenalty:        0,
			Explanation:        "Amenorrhea with unilateral adnexal pain and a positive beta-hCG is ectopic until proven otherwise.",
		},
	}
}

func sampleEvents() map[string]domain.Event {
	return map[string]domain.Event{
		"event-1": {
			ID:      "event-1",
			Title:   "Weekly diagnostic sprint",
			CaseIDs: []string{"case-1", "case-2"},
		},
	}
}
