package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/internal/security"
	"github.com/baibhavbaidya/researchmind-backend/models"
	"github.com/baibhavbaidya/researchmind-backend/utils"
)

// Upload chunks and indexes a PDF for userID and records it. Either the
// document is fully indexed and recorded or nothing changes.
func (s *ResearchService) Upload(ctx context.Context, userID, filename string, content []byte) (*models.Document, error) {
	name, err := s.admit(ctx, userID, filename, int64(len(content)))
	if err != nil {
		return nil, err
	}

	unlock := s.docs.lock(userID)
	defer unlock()
	if err := s.checkCapacity(userID, name); err != nil {
		return nil, err
	}
	path, err := s.Files.Save(userID, content)
	if err != nil {
		return nil, err
	}
	doc, err := s.index(ctx, userID, name, path, content)
	if err != nil {
		s.removeFile(path)
		return nil, err
	}
	return doc, nil
}

// EnqueueUpload stores the file and queues it for background indexing.
func (s *ResearchService) EnqueueUpload(ctx context.Context, userID, filename string, content []byte) (*models.UploadJob, error) {
	if s.Queue == nil {
		return nil, fmt.Errorf("%w: asynchronous uploads are disabled", apperr.ErrUnavailable)
	}
	name, err := s.admit(ctx, userID, filename, int64(len(content)))
	if err != nil {
		return nil, err
	}

	path, err := s.Files.Save(userID, content)
	if err != nil {
		return nil, err
	}
	job, err := s.Queue.EnqueueIndex(ctx, userID, name, path)
	if err != nil {
		s.removeFile(path)
		return nil, err
	}
	logger.Info("Upload queued", "user_id", userID, "filename", name, "job_id", job.ID)
	return job, nil
}

// IndexStoredFile indexes a file saved by EnqueueUpload. The file is removed
// when indexing fails.
func (s *ResearchService) IndexStoredFile(ctx context.Context, userID, filename, path string) (*models.Document, error) {
	content, err := s.Files.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stored upload %s: %v", apperr.ErrNotFound, filename, err)
	}
	name, err := s.admit(ctx, userID, filename, int64(len(content)))
	if err == nil {
		unlock := s.docs.lock(userID)
		defer unlock()
		if err = s.checkCapacity(userID, name); err == nil {
			var doc *models.Document
			if doc, err = s.index(ctx, userID, name, path, content); err == nil {
				return doc, nil
			}
		}
	}
	s.removeFile(path)
	return nil, err
}

func (s *ResearchService) UploadJob(ctx context.Context, userID, jobID string) (*models.UploadJob, error) {
	if s.Queue == nil {
		return nil, fmt.Errorf("%w: upload job %s", apperr.ErrNotFound, jobID)
	}
	return s.Queue.Job(ctx, userID, jobID)
}

// admit sanitizes filename and rejects uploads that would fail anyway before
// any embedding work is spent on them.
func (s *ResearchService) admit(ctx context.Context, userID, filename string, size int64) (string, error) {
	name, err := security.SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	if s.opts.MaxFileSize > 0 && size > s.opts.MaxFileSize {
		return "", fmt.Errorf("%w: file exceeds %d MB", apperr.ErrTooLarge, s.opts.MaxFileSize/(1024*1024))
	}

	s.ensureIndexed(ctx, userID)
	if err := s.checkCapacity(userID, name); err != nil {
		return "", err
	}
	return name, nil
}

func (s *ResearchService) checkCapacity(userID, name string) error {
	docs := s.Registry.Documents(userID)
	for _, d := range docs {
		if d.Filename == name {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateFilename, name)
		}
	}
	if s.opts.MaxDocuments > 0 && len(docs) >= s.opts.MaxDocuments {
		return fmt.Errorf("%w: at most %d documents per user", apperr.ErrDocumentLimitExceeded, s.opts.MaxDocuments)
	}
	return nil
}

func (s *ResearchService) index(ctx context.Context, userID, name, path string, content []byte) (*models.Document, error) {
	start := time.Now()
	chunked, err := s.Chunker.Chunk(ctx, name, content)
	if err != nil {
		s.Metrics.RecordPDFProcessing(ctx, time.Since(start), "failed")
		return nil, err
	}
	for i := range chunked.Chunks {
		chunked.Chunks[i].UserID = userID
	}

	n, err := s.Registry.AddDocument(ctx, userID, name, chunked.Chunks)
	if err != nil {
		s.Metrics.RecordPDFProcessing(ctx, time.Since(start), "failed")
		return nil, err
	}

	doc := &models.Document{
		UserID:     userID,
		Filename:   name,
		FilePath:   path,
		FileHash:   utils.HashBytes(content),
		Size:       int64(len(content)),
		ChunkCount: n,
		PageCount:  chunked.Pages,
		UploadedAt: time.Now().UTC(),
	}
	dbCtx, cancel := utils.WithTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.Store.SaveDocument(dbCtx, doc); err != nil {
		if rbErr := s.Registry.RemoveDocument(dbCtx, userID, name); rbErr != nil {
			logger.Error("Failed to roll back indexed document", "user_id", userID, "filename", name, "error", rbErr)
		}
		s.Metrics.RecordPDFProcessing(ctx, time.Since(start), "failed")
		return nil, err
	}

	s.Metrics.RecordPDFProcessing(ctx, time.Since(start), "success")
	return doc, nil
}

func (s *ResearchService) ListDocuments(ctx context.Context, userID string) ([]models.Document, error) {
	s.ensureIndexed(ctx, userID)
	return s.Store.ListDocuments(ctx, userID)
}

// DeleteDocument removes filename from the user's index, rebuilding it from
// the remaining chunks, and deletes its record and stored file.
func (s *ResearchService) DeleteDocument(ctx context.Context, userID, filename string) error {
	unlock := s.docs.lock(userID)
	defer unlock()

	doc, err := s.Store.GetDocument(ctx, userID, filename)
	if errors.Is(err, apperr.ErrNotFound) {
		return s.Registry.RemoveDocument(ctx, userID, filename)
	}
	if err != nil {
		return err
	}

	if err := s.Registry.RemoveDocument(ctx, userID, filename); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if err := s.Store.DeleteDocument(ctx, userID, filename); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	s.removeFile(doc.FilePath)
	return nil
}

// ClearDocuments empties the user's index and deletes every document record
// and stored file. It returns the number of records removed.
func (s *ResearchService) ClearDocuments(ctx context.Context, userID string) (int64, error) {
	unlock := s.docs.lock(userID)
	defer unlock()

	docs, err := s.Store.ListDocuments(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.Registry.ClearAll(userID)

	n, err := s.Store.ClearDocuments(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		s.removeFile(d.FilePath)
	}
	return n, nil
}

// ensureIndexed re-indexes recorded documents that are missing from the
// user's resident index, which happens after idle eviction or a restart.
// Concurrent callers for the same user share one restore, and a restore
// never overlaps an upload, delete or clear for that user.
func (s *ResearchService) ensureIndexed(ctx context.Context, userID string) {
	_, _, _ = s.restore.Do(userID, func() (any, error) {
		s.restoreDocuments(context.WithoutCancel(ctx), userID)
		return nil, nil
	})
}

func (s *ResearchService) restoreDocuments(ctx context.Context, userID string) {
	ctx, cancel := utils.WithLongTimeout(ctx)
	defer cancel()

	if missing, err := s.missingDocuments(ctx, userID); err != nil || len(missing) == 0 {
		return
	}

	// The record list is read again under the lock: a delete or clear that
	// finished while we waited must not be undone.
	unlock := s.docs.lock(userID)
	defer unlock()
	missing, err := s.missingDocuments(ctx, userID)
	if err != nil {
		return
	}

	for _, d := range missing {
		log := logger.With("user_id", userID, "filename", d.Filename)

		content, err := s.Files.Read(d.FilePath)
		if err != nil {
			log.Warn("Stored file missing, dropping document record", "error", err)
			if err := s.Store.DeleteDocument(ctx, userID, d.Filename); err != nil {
				log.Warn("Failed to drop document record", "error", err)
			}
			continue
		}
		chunked, err := s.Chunker.Chunk(ctx, d.Filename, content)
		if err != nil {
			log.Warn("Failed to restore document", "error", err)
			continue
		}
		for i := range chunked.Chunks {
			chunked.Chunks[i].UserID = userID
		}
		if _, err := s.Registry.AddDocument(ctx, userID, d.Filename, chunked.Chunks); err != nil && !errors.Is(err, apperr.ErrDuplicateFilename) {
			log.Warn("Failed to restore document", "error", err)
			continue
		}
		log.Info("Document restored into index")
	}
}

// missingDocuments returns the recorded documents absent from the resident
// index.
func (s *ResearchService) missingDocuments(ctx context.Context, userID string) ([]models.Document, error) {
	stored, err := s.Store.ListDocuments(ctx, userID)
	if err != nil {
		logger.Warn("Cannot list stored documents", "user_id", userID, "error", err)
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	resident := map[string]bool{}
	for _, d := range s.Registry.Documents(userID) {
		resident[d.Filename] = true
	}
	var missing []models.Document
	for _, d := range stored {
		if !resident[d.Filename] {
			missing = append(missing, d)
		}
	}
	return missing, nil
}

func (s *ResearchService) removeFile(path string) {
	if err := s.Files.Remove(path); err != nil {
		logger.Warn("Failed to remove stored file", "path", path, "error", err)
	}
}
