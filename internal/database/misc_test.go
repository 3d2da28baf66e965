package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gardenplots/internal/config"
	"gardenplots/internal/domain"
	"gardenplots/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &models.User{ID: "u1", Email: "ann@example.com", FullName: "Ann"}
	require.NoError(t, db.UpsertUser(ctx, u))
	assert.Equal(t, models.RoleUser, u.Role)

	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "u1", Email: "ann@new.example.com", FullName: "Ignored", Role: models.RoleAdmin}))

	got, err := db.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ann@new.example.com", got.Email)
	assert.Equal(t, "Ann", got.FullName)
	assert.Equal(t, models.RoleAdmin, got.Role)

	require.NoError(t, db.UpdateUserProfile(ctx, "u1", "Ann Gardener", "https://img/ann.png"))
	got, err = db.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann Gardener", got.FullName)
	assert.Equal(t, "https://img/ann.png", got.AvatarURL)

	_, err = db.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, db.UpdateUserProfile(ctx, "ghost", "x", ""), domain.ErrNotFound)
}

func TestMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, m := range []struct{ from, to, text string }{
		{"a", "b", "hello"},
		{"b", "a", "hi there"},
		{"a", "b", "is the plot sunny?"},
		{"c", "a", "unrelated"},
	} {
		require.NoError(t, db.CreateMessage(ctx, &models.Message{
			SenderID: m.from, ReceiverID: m.to, Content: m.text, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	conv, err := db.ListConversation(ctx, "b", "a", 50)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, "hello", conv[0].Content)
	assert.Equal(t, "is the plot sunny?", conv[2].Content)

	last2, err := db.ListConversation(ctx, "a", "b", 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.Equal(t, "hi there", last2[0].Content)

	all, err := db.ListMessagesForUser(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "unrelated", all[0].Content)

	require.NoError(t, db.MarkConversationRead(ctx, "b", "a"))
	conv, err = db.ListConversation(ctx, "a", "b", 50)
	require.NoError(t, err)
	for _, m := range conv {
		if m.ReceiverID == "b" {
			assert.True(t, m.Read)
		} else {
			assert.False(t, m.Read)
		}
	}
}

func TestOutbox(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{EventType: "booking_created", AggregateID: "b1", Payload: `{"id":"b1"}`}
	require.NoError(t, db.CreateOutboxTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.OutboxStatusPending, task.Status)

	pending, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusRetry, "broker down", &future))
	pending, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "task is not due before next_retry_at")

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusRetry, "broker down", &past))
	pending, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "broker down", *pending[0].LastError)

	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusCompleted, "", nil))
	pending, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	logger := zerolog.Nop()
	db, err := NewSQLite(filepath.Join(tempDir, "source.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	seedGarden(t, db, "Backed Up", 1, 100)

	storagePath := filepath.Join(tempDir, "backups")
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: storagePath, RetentionDays: 1}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)

		restored, err := NewSQLite(path, &logger)
		require.NoError(t, err)
		defer restored.Close()
		gardens, err := restored.ListGardens(context.Background())
		require.NoError(t, err)
		assert.Len(t, gardens, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "gardens_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		s.CleanupOldBackups()

		_, err := os.Stat(oldFile)
		assert.True(t, os.IsNotExist(err))
		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("StartDisabled", func(t *testing.T) {
		disabled := NewBackupService(db, config.BackupConfig{Enabled: false}, &logger)
		disabled.Start(context.Background())
	})
}
