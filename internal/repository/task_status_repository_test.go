package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

func TestMemoryTaskStatusRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryTaskStatusRepository(time.Hour)
	task := &models.GenerationTask{ID: "task-1", State: models.TaskRunning, Current: 2, Total: 5}

	require.NoError(t, repo.Save(context.Background(), task))
	task.Current = 3

	stored, err := repo.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Current)
	assert.Equal(t, models.TaskRunning, stored.State)
}

func TestMemoryTaskStatusRepositoryExpiry(t *testing.T) {
	repo := NewMemoryTaskStatusRepository(time.Minute)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Save(context.Background(), &models.GenerationTask{ID: "task-1"}))
	now = now.Add(2 * time.Minute)

	_, err := repo.Get(context.Background(), "task-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRedisTaskStatusRepositoryWithoutClient(t *testing.T) {
	repo := NewRedisTaskStatusRepository(nil, time.Minute)
	_, err := repo.Get(context.Background(), "task-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Error(t, repo.Save(context.Background(), &models.GenerationTask{ID: "task-1"}))
}
