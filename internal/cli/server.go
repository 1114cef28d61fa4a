package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
	pgstore "trivia-session-service/internal/infra/postgres"
	redisstore "trivia-session-service/internal/infra/redis"
	transport "trivia-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session orchestrator",
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

	var snapshots app.SnapshotStore
	if redisClient != nil {
		snapshotTTL := config.Duration(cfg.Redis.SnapshotTTL, 24*time.Hour)
		snapshots = redisstore.NewSnapshotStore(redisClient, snapshotTTL)
	} else {
		snapshots = memory.NewSnapshotStore()
	}

	var results app.ResultsRecorder = memory.NewResultsRecorder()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		results = pgstore.NewResultsRecorder(pool)
	}

	// The static bank stands in for an LLM-backed generator; swap the inner
	// source to integrate one. The caching wrapper keeps repeated starts for
	// the same topic from regenerating content.
	cacheTTL := config.Duration(cfg.Session.QuestionCacheTTL, 10*time.Minute)
	var source app.QuestionSource = memory.NewCachingQuestionSource(
		memory.NewStaticQuestionSource(sampleQuestionBank()), cacheTTL)

	hub := transport.NewHub()
	orchestrator := app.NewOrchestrator(source, hub, snapshots, results, app.Options{
		GenerationTimeout: config.Duration(cfg.Session.GenerationTimeout, 30*time.Second),
		MaxIdle:           config.Duration(cfg.Session.MaxIdle, 30*time.Minute),
		SweepInterval:     config.Duration(cfg.Session.SweepInterval, 5*time.Minute),
		RecoveryGrace:     config.Duration(cfg.Session.RecoveryGrace, time.Minute),
		SnapshotInterval:  config.Duration(cfg.Session.SnapshotInterval, time.Minute),
		MaxParticipants:   cfg.Session.MaxParticipants,
	})

	if restored, err := orchestrator.RestoreSessions(ctx); err != nil {
		log.Printf("snapshot restore failed: %v", err)
	} else if restored > 0 {
		log.Printf("restored %d sessions awaiting resume", restored)
	}

	maintCtx, stopMaintenance := context.WithCancel(context.Background())
	defer stopMaintenance()
	go orchestrator.RunMaintenance(maintCtx)

	wsHandler := transport.NewWSHandler(orchestrator, hub)

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
		log.Printf("starting session orchestrator on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Snapshot live sessions before the process exits so they can be resumed
	// after restart.
	if err := orchestrator.SnapshotSessions(shutdownCtx); err != nil {
		log.Printf("shutdown snapshot failed: %v", err)
	}
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionBank provides minimal demo content keyed by topic; the empty
// key is the fallback bank.
func sampleQuestionBank() map[string][]domain.Question {
	return map[string][]domain.Question{
		"": {
			{
				Kind:           domain.KindMultipleChoice,
				Text:           "Which planet is known as the Red Planet?",
				Options:        []string{"Venus", "Mars", "Jupiter", "Mercury"},
				CorrectAnswer:  "Mars",
				Explanation:    "Iron oxide on its surface gives Mars its color.",
				TimeoutSeconds: 30,
			},
			{
				Kind:           domain.KindTrueFalse,
				Text:           "The Great Wall of China is visible from the Moon.",
				CorrectAnswer:  "false",
				Explanation:    "It is far too narrow to be seen from that distance.",
				TimeoutSeconds: 20,
			},
			{
				Kind:           domain.KindShortAnswer,
				Text:           "What is the longest river in Africa?",
				CorrectAnswer:  "The Nile",
				TimeoutSeconds: 25,
			},
		},
	}
}
