package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/models"

	"github.com/redis/go-redis/v9"
)

const jobTTL = 24 * time.Hour

// JobStore persists upload job status per user.
type JobStore interface {
	Save(ctx context.Context, userID string, job *models.UploadJob) error
	Get(ctx context.Context, userID, jobID string) (*models.UploadJob, error)
}

// RedisJobs is the subset of redis used by RedisJobStore.
type RedisJobs interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type RedisJobStore struct {
	rdb RedisJobs
}

func NewRedisJobStore(rdb RedisJobs) *RedisJobStore {
	return &RedisJobStore{rdb: rdb}
}

func jobKey(userID, jobID string) string {
	return "upload_job:" + userID + ":" + jobID
}

func (s *RedisJobStore) Save(ctx context.Context, userID string, job *models.UploadJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(userID, job.ID), data, jobTTL).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, userID, jobID string) (*models.UploadJob, error) {
	data, err := s.rdb.Get(ctx, jobKey(userID, jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: upload job %s", apperr.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load upload job: %v", apperr.ErrUnavailable, err)
	}
	var job models.UploadJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
