package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
	pgrecorder "trivia-session-service/internal/infra/postgres"
	pgmigrations "trivia-session-service/internal/infra/postgres/migrations"
	infraredis "trivia-session-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestSessionLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	orchestrator := app.NewOrchestrator(
		memory.NewStaticQuestionSource(fastBank(2)),
		discardDeliverer{},
		memory.NewSnapshotStore(),
		pgrecorder.NewResultsRecorder(pool),
		app.Options{},
	)

	scope := domain.TenantScope{CommunityID: "c1", ChannelID: "ch1"}
	if _, err := orchestrator.StartSession(ctx, scope, "host-1", "fast", "easy", 2, domain.ModeMultiAnswer); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if outcome, err := orchestrator.SubmitAnswer(scope, "alice", "true"); err != nil || !outcome.Accepted || !outcome.Correct {
			t.Fatalf("submit q%d: %+v (%v)", i+1, outcome, err)
		}
		waitForNextQuestion(t, orchestrator, scope, i+1)
	}

	// Finalization removes the session from the registry before the results
	// write lands, so give the insert a moment.
	var sessions, correct int
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := pool.QueryRow(ctx, `SELECT count(*) FROM quiz_sessions WHERE community_id='c1' AND channel_id='ch1'`).Scan(&sessions); err != nil {
			t.Fatalf("count sessions: %v", err)
		}
		if sessions == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if sessions != 1 {
		t.Fatalf("expected 1 recorded session, got %d", sessions)
	}
	if err := pool.QueryRow(ctx, `SELECT correct_count FROM quiz_session_participants WHERE participant_id='alice'`).Scan(&correct); err != nil {
		t.Fatalf("participant row: %v", err)
	}
	if correct != 2 {
		t.Fatalf("expected 2 correct answers recorded, got %d", correct)
	}
}

func TestSnapshotRecoveryAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	snapshots := infraredis.NewSnapshotStore(redisClient, 5*time.Minute)

	first := app.NewOrchestrator(
		memory.NewStaticQuestionSource(slowBank()),
		discardDeliverer{},
		snapshots,
		memory.NewResultsRecorder(),
		app.Options{},
	)
	scope := domain.TenantScope{CommunityID: "c1", ChannelID: "ch1"}
	if _, err := first.StartSession(ctx, scope, "host-1", "slow", "easy", 2, domain.ModeMultiAnswer); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := first.SubmitAnswer(scope, "alice", "true"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := first.SnapshotSessions(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// A second orchestrator plays the restarted process.
	second := app.NewOrchestrator(
		memory.NewStaticQuestionSource(slowBank()),
		discardDeliverer{},
		snapshots,
		memory.NewResultsRecorder(),
		app.Options{},
	)
	restored, err := second.RestoreSessions(ctx)
	if err != nil || restored != 1 {
		t.Fatalf("expected 1 restored session, got %d (%v)", restored, err)
	}
	view, ok := second.GetSessionSnapshot(scope)
	if !ok || view.Status != domain.StatusRecovering {
		t.Fatalf("expected recovering session, got %+v", view)
	}

	if err := second.ResumeSession(ctx, scope); err != nil {
		t.Fatalf("resume: %v", err)
	}
	view, ok = second.GetSessionSnapshot(scope)
	if !ok || view.Status != domain.StatusQuestionOpen {
		t.Fatalf("expected resumed play, got %+v", view)
	}
}

type discardDeliverer struct{}

func (discardDeliverer) Deliver(domain.TenantScope, domain.Event) error { return nil }

// waitForNextQuestion blocks until the real one-second deadline closes
// question done (1-based) or the session finishes.
func waitForNextQuestion(t *testing.T, orchestrator *app.Orchestrator, scope domain.TenantScope, done int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		view, ok := orchestrator.GetSessionSnapshot(scope)
		if !ok || view.CurrentIndex >= done {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("question %d never closed", done)
}

func fastBank(n int) map[string][]domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			Kind:           domain.KindTrueFalse,
			Text:           fmt.Sprintf("statement %d", i+1),
			CorrectAnswer:  "true",
			TimeoutSeconds: 1,
		}
	}
	return map[string][]domain.Question{"fast": questions}
}

func slowBank() map[string][]domain.Question {
	return map[string][]domain.Question{
		"slow": {
			{Kind: domain.KindTrueFalse, Text: "statement 1", CorrectAnswer: "true", TimeoutSeconds: 120},
			{Kind: domain.KindTrueFalse, Text: "statement 2", CorrectAnswer: "true", TimeoutSeconds: 120},
		},
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
