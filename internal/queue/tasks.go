package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TaskIndexDocument = "document:index"

	queueName = "uploads"
)

type IndexDocumentPayload struct {
	JobID    string `json:"job_id"`
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

func NewIndexDocumentTask(p IndexDocumentPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexDocument,
		payload,
		asynq.TaskID(p.JobID),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(queueName),
	), nil
}

// Indexer chunks and indexes a file that is already on disk.
type Indexer interface {
	IndexStoredFile(ctx context.Context, userID, filename, path string) (*models.Document, error)
}

// TaskProcessor handles queued upload tasks and keeps their job status current.
type TaskProcessor struct {
	indexer Indexer
	jobs    JobStore
}

func NewTaskProcessor(indexer Indexer, jobs JobStore) *TaskProcessor {
	return &TaskProcessor{indexer: indexer, jobs: jobs}
}

func (p *TaskProcessor) ProcessIndexDocument(ctx context.Context, t *asynq.Task) error {
	var payload IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	log := logger.With("job_id", payload.JobID, "user_id", payload.UserID, "filename", payload.Filename)
	log.Info("Indexing uploaded document")

	p.update(ctx, payload, models.JobProcessing, nil, "")

	doc, err := p.indexer.IndexStoredFile(ctx, payload.UserID, payload.Filename, payload.FilePath)
	if err == nil {
		p.update(ctx, payload, models.JobCompleted, doc, "")
		log.Info("Document indexed", "chunks", doc.ChunkCount)
		return nil
	}

	if permanent(err) || finalAttempt(ctx) {
		log.Warn("Indexing failed", "error", err)
		p.update(ctx, payload, models.JobFailed, nil, err.Error())
		if permanent(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	log.Warn("Indexing failed, will retry", "error", err)
	p.update(ctx, payload, models.JobPending, nil, err.Error())
	return err
}

func (p *TaskProcessor) update(ctx context.Context, payload IndexDocumentPayload, status string, doc *models.Document, msg string) {
	job := &models.UploadJob{
		ID:        payload.JobID,
		Filename:  payload.Filename,
		Status:    status,
		Error:     msg,
		UpdatedAt: time.Now().UTC(),
	}
	if doc != nil {
		job.Chunks = doc.ChunkCount
		job.Pages = doc.PageCount
	}
	if err := p.jobs.Save(context.WithoutCancel(ctx), payload.UserID, job); err != nil {
		logger.Warn("Failed to update upload job", "job_id", payload.JobID, "error", err)
	}
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	for _, target := range []error{
		apperr.ErrValidation,
		apperr.ErrDuplicateFilename,
		apperr.ErrDocumentLimitExceeded,
		apperr.ErrUnsupportedFormat,
		apperr.ErrTooLarge,
		apperr.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	limit, ok := asynq.GetMaxRetry(ctx)
	return !ok || retried >= limit
}

// Dispatcher enqueues upload tasks and reports their status.
type Dispatcher struct {
	client *asynq.Client
	jobs   JobStore
}

func NewDispatcher(redisOpt asynq.RedisConnOpt, jobs JobStore) *Dispatcher {
	return &Dispatcher{client: asynq.NewClient(redisOpt), jobs: jobs}
}

// EnqueueIndex records a pending job and queues it for the worker.
func (d *Dispatcher) EnqueueIndex(ctx context.Context, userID, filename, path string) (*models.UploadJob, error) {
	job := &models.UploadJob{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    models.JobPending,
		UpdatedAt: time.Now().UTC(),
	}
	if err := d.jobs.Save(ctx, userID, job); err != nil {
		return nil, fmt.Errorf("%w: save upload job: %v", apperr.ErrUnavailable, err)
	}

	task, err := NewIndexDocumentTask(IndexDocumentPayload{JobID: job.ID, UserID: userID, Filename: filename, FilePath: path})
	if err != nil {
		return nil, err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return nil, fmt.Errorf("%w: enqueue upload: %v", apperr.ErrUnavailable, err)
	}
	return job, nil
}

func (d *Dispatcher) Job(ctx context.Context, userID, jobID string) (*models.UploadJob, error) {
	return d.jobs.Get(ctx, userID, jobID)
}

func (d *Dispatcher) Close() error {
	return d.client.Close()
}

// NewWorker builds the in-process asynq server that drains the upload queue.
// It must run in the same process as the index registry it fills.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	if concurrency <= 0 {
		concurrency = 2
	}
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{queueName: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIndexDocument, processor.ProcessIndexDocument)
	return server, mux
}
