package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"vision-assistant-be/internal/model"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/repository/memory"
	"vision-assistant-be/internal/repository/unitofwork"
	"vision-assistant-be/pkg/assistant/assistanttest"
	"vision-assistant-be/pkg/events"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testAssistantID = "asst_test"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// recordingPublisher keeps every published event for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type testEnv struct {
	db        *gorm.DB
	factory   unitofwork.RepositoryFactory
	fake      *assistanttest.Fake
	publisher *recordingPublisher
	service   IThreadService
}

func newTestEnv(t *testing.T, fake *assistanttest.Fake, mutate ...func(*ThreadServiceConfig)) *testEnv {
	t.Helper()
	db := openTestDB(t)
	factory := unitofwork.NewRepositoryFactory(db)
	pub := &recordingPublisher{}

	cfg := ThreadServiceConfig{
		AssistantID:       testAssistantID,
		PollInterval:      time.Millisecond,
		DeleteThreadOnEnd: true,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	svc := NewThreadService(
		factory,
		fake,
		memory.NewRunLockRepository(time.Minute),
		pub,
		nil,
		logger.NewNopLogger(),
		cfg,
	)
	return &testEnv{db: db, factory: factory, fake: fake, publisher: pub, service: svc}
}
