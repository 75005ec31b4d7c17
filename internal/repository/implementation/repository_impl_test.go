package implementation

import (
	"context"
	"testing"
	"time"

	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/model"
	"vision-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func TestThreadRepository_EndAndReactivate(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(openTestDB(t))
	owner := uuid.New()

	thread := &entity.Thread{ThreadId: "thread_1", OwnerId: owner, IsActive: true}
	require.NoError(t, repo.Create(ctx, thread))
	assert.Equal(t, model.DefaultThreadTitle, thread.Title)

	ended, err := repo.End(ctx, "thread_1", owner, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, ended)
	assert.False(t, ended.IsActive)
	assert.NotNil(t, ended.EndedAt)

	reactivated, err := repo.Reactivate(ctx, "thread_1", owner)
	require.NoError(t, err)
	require.NotNil(t, reactivated)
	assert.True(t, reactivated.IsActive)
	assert.Nil(t, reactivated.EndedAt)
}

func TestThreadRepository_EndWrongOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(openTestDB(t))
	owner := uuid.New()

	require.NoError(t, repo.Create(ctx, &entity.Thread{ThreadId: "thread_1", OwnerId: owner, IsActive: true}))

	ended, err := repo.End(ctx, "thread_1", uuid.New(), time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, ended)

	found, err := repo.FindOne(ctx, specification.ByThreadID{ThreadID: "thread_1"})
	require.NoError(t, err)
	assert.True(t, found.IsActive)
}

func TestThreadRepository_UpdateTitleIfDefault(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(openTestDB(t))

	require.NoError(t, repo.Create(ctx, &entity.Thread{ThreadId: "thread_1", OwnerId: uuid.New(), IsActive: true}))

	updated, err := repo.UpdateTitleIfDefault(ctx, "thread_1", "What is this...")
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.UpdateTitleIfDefault(ctx, "thread_1", "Something else")
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestMessageRepository_SaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(openTestDB(t))

	first := &entity.Message{MessageId: "m1", ThreadId: "thread_1", Role: entity.RoleUser, Content: "hello"}
	existing, err := repo.Save(ctx, first)
	require.NoError(t, err)
	assert.False(t, existing)

	dup := &entity.Message{MessageId: "m1", ThreadId: "thread_1", Role: entity.RoleUser, Content: "changed"}
	existing, err = repo.Save(ctx, dup)
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, "hello", dup.Content)

	count, err := repo.Count(ctx, specification.ByThreadID{ThreadID: "thread_1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMessageRepository_HistoryOrderedByCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(openTestDB(t))
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b"} {
		_, err := repo.Save(ctx, &entity.Message{
			MessageId: id,
			ThreadId:  "thread_1",
			Role:      entity.RoleUser,
			Content:   id,
			CreatedAt: base.Add(time.Duration(2-i) * time.Second),
		})
		require.NoError(t, err)
	}

	msgs, err := repo.FindAll(ctx,
		specification.ByThreadID{ThreadID: "thread_1"},
		specification.OrderBy{Field: "created_at"},
	)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "b", msgs[0].MessageId)
	assert.Equal(t, "a", msgs[1].MessageId)
	assert.Equal(t, "c", msgs[2].MessageId)
}

func TestMessageRepository_HasMetadataKey(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(openTestDB(t))

	_, err := repo.Save(ctx, &entity.Message{
		MessageId: "m1", ThreadId: "thread_1", Role: entity.RoleAssistant, Content: "a cat",
		Metadata: map[string]interface{}{entity.MetaAnalysisType: "image"},
	})
	require.NoError(t, err)
	_, err = repo.Save(ctx, &entity.Message{
		MessageId: "m2", ThreadId: "thread_1", Role: entity.RoleAssistant, Content: "plain",
	})
	require.NoError(t, err)

	msgs, err := repo.FindAll(ctx,
		specification.ByThreadID{ThreadID: "thread_1"},
		specification.HasMetadataKey{Key: entity.MetaAnalysisType},
	)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].MessageId)
	assert.Equal(t, "image", msgs[0].MetaString(entity.MetaAnalysisType))
}

func TestDetectionRepository_Append(t *testing.T) {
	ctx := context.Background()
	repo := NewDetectionRepository(openTestDB(t))

	for i := 0; i < 3; i++ {
		d := &entity.Detection{ThreadId: "thread_1", Payload: map[string]interface{}{"label": "cat"}}
		require.NoError(t, repo.Append(ctx, d))
		assert.NotEqual(t, uuid.Nil, d.Id)
		assert.False(t, d.RecordedAt.IsZero())
	}

	count, err := repo.Count(ctx, specification.ByThreadID{ThreadID: "thread_1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, repo.DeleteByThreadId(ctx, "thread_1"))
	count, err = repo.Count(ctx, specification.ByThreadID{ThreadID: "thread_1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMessageRepository_FirstContentByRole(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(openTestDB(t))
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, m := range []*entity.Message{
		{MessageId: "t1-late", ThreadId: "thread_1", Role: entity.RoleUser, Content: "second question", CreatedAt: base.Add(time.Minute)},
		{MessageId: "t1-reply", ThreadId: "thread_1", Role: entity.RoleAssistant, Content: "an answer", CreatedAt: base},
		{MessageId: "t1-early", ThreadId: "thread_1", Role: entity.RoleUser, Content: "first question", CreatedAt: base.Add(time.Second)},
		{MessageId: "t2-b", ThreadId: "thread_2", Role: entity.RoleUser, Content: "tie b", CreatedAt: base},
		{MessageId: "t2-a", ThreadId: "thread_2", Role: entity.RoleUser, Content: "tie a", CreatedAt: base},
		{MessageId: "t3-reply", ThreadId: "thread_3", Role: entity.RoleAssistant, Content: "only assistant", CreatedAt: base},
		{MessageId: "t4", ThreadId: "thread_4", Role: entity.RoleUser, Content: "not asked for", CreatedAt: base},
	} {
		_, err := repo.Save(ctx, m)
		require.NoError(t, err)
	}

	firsts, err := repo.FirstContentByRole(ctx, []string{"thread_1", "thread_2", "thread_3"}, entity.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"thread_1": "first question",
		"thread_2": "tie a",
	}, firsts)

	empty, err := repo.FirstContentByRole(ctx, nil, entity.RoleUser)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
