package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"quizchain/internal/app"
	"quizchain/internal/domain"
	pgarchive "quizchain/internal/infra/postgres"
	pgmigrations "quizchain/internal/infra/postgres/migrations"
	redisboard "quizchain/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestArchiveAndCacheEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	archive := pgarchive.NewArchive(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	boards := redisboard.NewBoardCache(redisClient, 5*time.Minute)

	clock := &fakeClock{now: time.UnixMicro(1700000000000000)}
	engine := app.NewEngineWithClock(archive, boards, clock.Now)
	if err := engine.Restore(ctx); err != nil {
		t.Fatalf("restore empty: %v", err)
	}

	quizID, err := engine.CreateQuiz(ctx, domain.CreateQuizParams{
		Creator:     "0xcreator",
		Nickname:    "creator",
		Title:       "Capitals",
		Description: "One question",
		Questions: []domain.QuestionParams{
			{Text: "Capital of France?", Options: []string{"A", "B"}, CorrectOptions: []int{1}, Points: 10, Type: "single"},
		},
		TimeLimit: 300,
		StartTime: domain.TimestampFromTime(clock.Now().Add(time.Hour)),
		EndTime:   domain.TimestampFromTime(clock.Now().Add(2 * time.Hour)),
		Mode:      "public",
		StartMode: "auto",
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	clock.Advance(90 * time.Minute)
	submit := func(wallet, nickname string, selected []int) uint32 {
		t.Helper()
		score, err := engine.SubmitAnswers(ctx, domain.SubmitAnswersParams{
			QuizID:    quizID,
			User:      wallet,
			Nickname:  nickname,
			Answers:   []domain.AnswerSelection{{QuestionID: fmt.Sprintf("q%d-0", quizID), Selected: selected}},
			TimeTaken: 30000,
		})
		if err != nil {
			t.Fatalf("submit %s: %v", nickname, err)
		}
		return score
	}
	if score := submit("0xalice", "alice", []int{0}); score != 0 {
		t.Fatalf("expected 0, got %d", score)
	}
	if score := submit("0xbob", "bob", []int{1}); score != 10 {
		t.Fatalf("expected 10, got %d", score)
	}

	entries, err := engine.QuizLeaderboard(ctx, quizID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].Nickname != "bob" {
		t.Fatalf("expected bob leading, got %+v", entries)
	}

	// A fresh engine restored from the archive sees the same state.
	restored := app.NewEngineWithClock(archive, boards, clock.Now)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	quiz, err := restored.QuizSet(quizID)
	if err != nil {
		t.Fatalf("restored quiz: %v", err)
	}
	if quiz.Title != "Capitals" || quiz.ParticipantCount != 2 {
		t.Fatalf("restored quiz mismatch: %+v", quiz)
	}
	if !restored.IsUserParticipated(quizID, "0xalice") {
		t.Fatalf("restored engine lost alice's attempt")
	}
	entries, err = restored.QuizLeaderboard(ctx, quizID)
	if err != nil {
		t.Fatalf("restored leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].Nickname != "bob" || entries[0].Rank != 1 {
		t.Fatalf("restored leaderboard mismatch: %+v", entries)
	}

	// The duplicate-attempt rule survives the restart too.
	if _, err := restored.SubmitAnswers(ctx, domain.SubmitAnswersParams{
		QuizID:   quizID,
		User:     "0xalice",
		Nickname: "alice",
		Answers:  []domain.AnswerSelection{{QuestionID: fmt.Sprintf("q%d-0", quizID), Selected: []int{1}}},
	}); err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted after restore, got %v", err)
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
