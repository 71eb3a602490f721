package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/models"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRedis struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

type fakeIndexer struct {
	err error
}

func (f fakeIndexer) IndexStoredFile(_ context.Context, userID, filename, path string) (*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Document{UserID: userID, Filename: filename, FilePath: path, ChunkCount: 4, PageCount: 2}, nil
}

func newTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewIndexDocumentTask(IndexDocumentPayload{JobID: "job-1", UserID: "u1", Filename: "paper.pdf", FilePath: "/tmp/u1/paper.pdf"})
	require.NoError(t, err)
	return task
}

func TestJobStoreIsPerUser(t *testing.T) {
	store := NewRedisJobStore(&memRedis{data: map[string][]byte{}})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u1", &models.UploadJob{ID: "job-1", Filename: "a.pdf", Status: models.JobPending}))
	job, err := store.Get(ctx, "u1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)

	_, err = store.Get(ctx, "u2", "job-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProcessIndexDocumentCompletes(t *testing.T) {
	store := NewRedisJobStore(&memRedis{data: map[string][]byte{}})
	p := NewTaskProcessor(fakeIndexer{}, store)

	require.NoError(t, p.ProcessIndexDocument(context.Background(), newTask(t)))
	job, err := store.Get(context.Background(), "u1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 4, job.Chunks)
	assert.Equal(t, 2, job.Pages)
}

func TestProcessIndexDocumentPermanentFailure(t *testing.T) {
	store := NewRedisJobStore(&memRedis{data: map[string][]byte{}})
	p := NewTaskProcessor(fakeIndexer{err: fmt.Errorf("%w: paper.pdf", apperr.ErrDuplicateFilename)}, store)

	err := p.ProcessIndexDocument(context.Background(), newTask(t))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	job, err := store.Get(context.Background(), "u1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.Error, "paper.pdf")
}

func TestProcessIndexDocumentTransientFailureOnLastAttempt(t *testing.T) {
	store := NewRedisJobStore(&memRedis{data: map[string][]byte{}})
	p := NewTaskProcessor(fakeIndexer{err: apperr.ErrUnavailable}, store)

	err := p.ProcessIndexDocument(context.Background(), newTask(t))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	job, err := store.Get(context.Background(), "u1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status, "no retry metadata means no retries left")
}

func TestProcessIndexDocumentBadPayload(t *testing.T) {
	p := NewTaskProcessor(fakeIndexer{}, NewRedisJobStore(&memRedis{data: map[string][]byte{}}))
	err := p.ProcessIndexDocument(context.Background(), asynq.NewTask(TaskIndexDocument, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestTaskPayload(t *testing.T) {
	task := newTask(t)
	assert.Equal(t, TaskIndexDocument, task.Type())
	var p IndexDocumentPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "paper.pdf", p.Filename)
}
