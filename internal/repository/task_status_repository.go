package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

const taskKeyPrefix = "timetable:generation:task:"

// RedisTaskStatusRepository keeps generation task state in Redis so any API
// replica can answer status polls.
type RedisTaskStatusRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTaskStatusRepository constructs the Redis-backed store.
func NewRedisTaskStatusRepository(client *redis.Client, ttl time.Duration) *RedisTaskStatusRepository {
	return &RedisTaskStatusRepository{client: client, ttl: ttl}
}

// Save stores the task snapshot, refreshing its TTL.
func (r *RedisTaskStatusRepository) Save(ctx context.Context, task *models.GenerationTask) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	if err := r.client.Set(ctx, taskKeyPrefix+task.ID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set task %s: %w", task.ID, err)
	}
	return nil
}

// Get loads a task; ErrNotFound when unknown or expired.
func (r *RedisTaskStatusRepository) Get(ctx context.Context, id string) (*models.GenerationTask, error) {
	if r.client == nil {
		return nil, appErrors.ErrNotFound
	}
	raw, err := r.client.Get(ctx, taskKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get task %s: %w", id, err)
	}
	var task models.GenerationTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

// MemoryTaskStatusRepository is the single-process fallback store.
type MemoryTaskStatusRepository struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	tasks map[string]memoryTask
}

type memoryTask struct {
	task      models.GenerationTask
	expiresAt time.Time
}

// NewMemoryTaskStatusRepository constructs the in-memory store.
func NewMemoryTaskStatusRepository(ttl time.Duration) *MemoryTaskStatusRepository {
	return &MemoryTaskStatusRepository{ttl: ttl, now: time.Now, tasks: make(map[string]memoryTask)}
}

// Save stores a copy of the task and evicts expired ones.
func (r *MemoryTaskStatusRepository) Save(_ context.Context, task *models.GenerationTask) error {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, stored := range r.tasks {
		if !stored.expiresAt.IsZero() && now.After(stored.expiresAt) {
			delete(r.tasks, id)
		}
	}
	entry := memoryTask{task: *task}
	if r.ttl > 0 {
		entry.expiresAt = now.Add(r.ttl)
	}
	r.tasks[task.ID] = entry
	return nil
}

// Get returns a copy of the task; ErrNotFound when unknown or expired.
func (r *MemoryTaskStatusRepository) Get(_ context.Context, id string) (*models.GenerationTask, error) {
	r.mu.RLock()
	stored, ok := r.tasks[id]
	r.mu.RUnlock()
	if !ok || (!stored.expiresAt.IsZero() && r.now().After(stored.expiresAt)) {
		return nil, appErrors.ErrNotFound
	}
	task := stored.task
	return &task, nil
}
