package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/chunker"
	"github.com/baibhavbaidya/researchmind-backend/internal/history"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/internal/pipeline"
	"github.com/baibhavbaidya/researchmind-backend/internal/progress"
	"github.com/baibhavbaidya/researchmind-backend/internal/registry"
	"github.com/baibhavbaidya/researchmind-backend/internal/security"
	"github.com/baibhavbaidya/researchmind-backend/models"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Runner executes one research run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, sink pipeline.Sink) (*pipeline.State, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type DocumentChunker interface {
	Chunk(ctx context.Context, filename string, content []byte) (*chunker.Document, error)
}

// Store persists research history and uploaded-document metadata.
// *history.Store implements it.
type Store interface {
	SaveEntry(ctx context.Context, entry *models.HistoryEntry) error
	List(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
	ClearHistory(ctx context.Context, userID string) (int64, error)
	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, userID, filename string) (*models.Document, error)
	ListDocuments(ctx context.Context, userID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, userID, filename string) error
	ClearDocuments(ctx context.Context, userID string) (int64, error)
	DeleteUser(ctx context.Context, userID string) error
}

// UploadQueue hands stored uploads to the background indexer.
type UploadQueue interface {
	EnqueueIndex(ctx context.Context, userID, filename, path string) (*models.UploadJob, error)
	Job(ctx context.Context, userID, jobID string) (*models.UploadJob, error)
}

type TokenRevoker interface {
	RevokeAllUserTokens(ctx context.Context, userID string) error
}

// Recorder receives service level metrics. *telemetry.Metrics implements it.
type Recorder interface {
	RecordRun(ctx context.Context, outcome string, usedDocuments bool)
	RecordPDFProcessing(ctx context.Context, duration time.Duration, status string)
	RecordEvictions(ctx context.Context, n int)
}

type noopRecorder struct{}

func (noopRecorder) RecordRun(context.Context, string, bool)                    {}
func (noopRecorder) RecordPDFProcessing(context.Context, time.Duration, string) {}
func (noopRecorder) RecordEvictions(context.Context, int)                       {}

type Deps struct {
	Pipeline  Runner
	Generator Generator
	Hub       *progress.Hub
	Registry  *registry.Registry
	Chunker   DocumentChunker
	Store     Store
	Files     *FileStorage
	// Queue, Revoker and Metrics are optional.
	Queue   UploadQueue
	Revoker TokenRevoker
	Metrics Recorder
}

type Options struct {
	PipelineTimeout time.Duration
	FollowupTimeout time.Duration
	MaxFileSize     int64
	MaxDocuments    int
	IndexIdleTTL    time.Duration
}

// ResearchService is the entry point for every user facing operation: research
// runs, follow-up questions, document management and account teardown.
type ResearchService struct {
	Deps
	opts Options

	runs    sync.WaitGroup
	restore singleflight.Group
	docs    userLocks
}

func NewResearchService(deps Deps, opts Options) *ResearchService {
	if deps.Metrics == nil {
		deps.Metrics = noopRecorder{}
	}
	if opts.PipelineTimeout <= 0 {
		opts.PipelineTimeout = 3 * time.Minute
	}
	if opts.FollowupTimeout <= 0 {
		opts.FollowupTimeout = time.Minute
	}
	if opts.IndexIdleTTL <= 0 {
		opts.IndexIdleTTL = 30 * time.Minute
	}
	return &ResearchService{Deps: deps, opts: opts}
}

// Run is a started research run. Events yields its progress and ends with a
// complete or error event.
type Run struct {
	ID     string
	Events *progress.Consumer

	done  chan struct{}
	state *pipeline.State
	err   error
}

// Result waits for the run to finish and returns its final state or the
// *apperr.StageError that stopped it.
func (r *Run) Result(ctx context.Context) (*pipeline.State, error) {
	select {
	case <-r.done:
		return r.state, r.err
	case <-ctx.Done():
		return nil, apperr.FromContext(ctx.Err())
	}
}

// RunQuery validates the query and starts the pipeline in the background.
// The run outlives ctx: a consumer that stops reading does not cancel it, and
// it is bounded by the pipeline timeout instead.
func (s *ResearchService) RunQuery(ctx context.Context, userID string, req models.QueryRequest) (*Run, error) {
	query, err := security.ValidateQuery(req.Query)
	if err != nil {
		return nil, err
	}
	if req.UseDocuments {
		s.ensureIndexed(ctx, userID)
	}

	runID := uuid.NewString()
	emitter, consumer, err := s.Hub.Open(runID)
	if err != nil {
		return nil, err
	}

	preq := pipeline.Request{RunID: runID, UserID: userID, Query: query, UseDocuments: req.UseDocuments}
	run := &Run{ID: runID, Events: consumer, done: make(chan struct{})}
	s.runs.Add(1)
	go s.execute(context.WithoutCancel(ctx), preq, emitter, run)

	return run, nil
}

func (s *ResearchService) execute(ctx context.Context, req pipeline.Request, emitter *progress.Emitter, run *Run) {
	defer s.runs.Done()
	defer emitter.Close()

	ctx, cancel := context.WithTimeout(ctx, s.opts.PipelineTimeout)
	defer cancel()

	sink := &recordingSink{next: emitter}
	st, err := s.Pipeline.Run(ctx, req, sink)
	run.state, run.err = st, err
	defer close(run.done)
	if err != nil {
		s.Metrics.RecordRun(ctx, apperr.Code(errors.Unwrap(err)), req.UseDocuments)
		return
	}
	s.Metrics.RecordRun(ctx, string(progress.StatusComplete), req.UseDocuments)

	entry := historyEntry(req, st, sink.logs)
	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	if err := s.Store.SaveEntry(saveCtx, entry); err != nil {
		logger.Error("Failed to save research history", "run_id", req.RunID, "user_id", req.UserID, "error", err)
	}
	cancelSave()

	sink.flush()
}

// recordingSink keeps a log line per event and holds the final complete event
// back until the history entry is written.
type recordingSink struct {
	next    pipeline.Sink
	logs    []models.AgentLog
	pending *progress.Event
}

func (r *recordingSink) Send(ev progress.Event) bool {
	r.logs = append(r.logs, models.AgentLog{Stage: ev.Stage, Status: string(ev.Status), Message: ev.Message})
	if ev.Status == progress.StatusComplete {
		r.pending = &ev
		return true
	}
	return r.next.Send(ev)
}

func (r *recordingSink) flush() {
	if r.pending != nil {
		r.next.Send(*r.pending)
		r.pending = nil
	}
}

func historyEntry(req pipeline.Request, st *pipeline.State, logs []models.AgentLog) *models.HistoryEntry {
	var sources []models.SourceRef
	for _, sum := range st.CitedSummaries() {
		sources = append(sources, models.SourceRef{
			Label:         sum.SourceLabel,
			URLOrFilename: sum.URLOrFilename,
			Title:         sum.Title,
			Origin:        string(sum.Origin),
			Confidence:    string(sum.Confidence),
		})
	}
	return &models.HistoryEntry{
		UserID:       req.UserID,
		RunID:        req.RunID,
		Query:        req.Query,
		Answer:       st.FinalAnswer,
		Sources:      sources,
		AgentLogs:    logs,
		Notes:        st.Notes,
		UsedDocument: req.UseDocuments,
		CreatedAt:    time.Now().UTC(),
	}
}

// Wait blocks until every background run has finished.
func (s *ResearchService) Wait() {
	s.runs.Wait()
}

// Followup answers a question about a previous answer with a single
// generation. It runs no pipeline stage and emits no progress.
func (s *ResearchService) Followup(ctx context.Context, userID string, req models.FollowupRequest) (string, error) {
	question, err := security.ValidateQuery(req.FollowupQuestion)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(req.OriginalQuery) == "" || strings.TrimSpace(req.OriginalAnswer) == "" {
		return "", apperr.Validation("original query and answer are required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FollowupTimeout)
	defer cancel()

	answer, err := s.Generator.Generate(ctx, pipeline.FollowupPrompt(req.OriginalQuery, req.OriginalAnswer, question))
	if err != nil {
		return "", apperr.FromContext(err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty follow-up answer", apperr.ErrUnavailable)
	}
	logger.Debug("Follow-up answered", "user_id", userID)
	return answer, nil
}

func (s *ResearchService) History(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	return s.Store.List(ctx, userID, history.ClampLimit(limit))
}

func (s *ResearchService) ClearHistory(ctx context.Context, userID string) (int64, error) {
	return s.Store.ClearHistory(ctx, userID)
}

// ExportHistory renders the user's most recent runs as an .xlsx workbook.
func (s *ResearchService) ExportHistory(ctx context.Context, userID string) ([]byte, error) {
	entries, err := s.Store.List(ctx, userID, history.MaxListLimit)
	if err != nil {
		return nil, err
	}
	return history.ExportXLSX(entries, time.Now())
}

// DeleteAccount removes everything held for userID: the resident index,
// stored files, history, document records and outstanding tokens.
func (s *ResearchService) DeleteAccount(ctx context.Context, userID string) error {
	unlock := s.docs.lock(userID)
	defer unlock()
	s.Registry.Drop(userID)

	if err := s.Store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	if err := s.Files.RemoveUser(userID); err != nil {
		logger.Warn("Failed to remove stored files", "user_id", userID, "error", err)
	}
	if s.Revoker != nil {
		if err := s.Revoker.RevokeAllUserTokens(ctx, userID); err != nil {
			logger.Warn("Failed to revoke tokens", "user_id", userID, "error", err)
		}
	}
	logger.Info("Account deleted", "user_id", userID)
	return nil
}

// Stats is the service state reported by the health endpoint.
type Stats struct {
	ActiveUsers int `json:"active_users"`
	Chunks      int `json:"chunks"`
	OpenRuns    int `json:"open_runs"`
}

func (s *ResearchService) Stats() Stats {
	rs := s.Registry.Stats()
	return Stats{ActiveUsers: rs.ActiveUsers, Chunks: rs.Chunks, OpenRuns: s.Hub.OpenRuns()}
}
