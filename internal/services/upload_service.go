package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"fundlens/internal/config"
	"fundlens/internal/dataprocessing"
	"fundlens/internal/errors"
	"fundlens/internal/files"
	"fundlens/internal/infrastructure"
	"fundlens/internal/jobs"
	"fundlens/internal/validation"
	"fundlens/pkg/contracts/domain"
)

// ProgressPublisher pushes batch lifecycle events to connected clients.
// *websocket.Hub satisfies it; tests inject a recorder.
type ProgressPublisher interface {
	PublishBatchQueued(batchID, jobID string, totalFiles int)
	PublishFileProcessing(batchID, fileName string)
	PublishFileDone(batchID, fileName, status string, rowCount int, headers []string, errMsg string)
	PublishBatchProgress(batchID string, completed, total int)
	PublishBatchCompleted(batchID string, processedFiles, totalRows int, warning string)
	PublishBatchFailed(batchID, errMsg string)
}

// UploadPart is one file from a multipart upload, already opened.
type UploadPart struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// UploadService owns the upload batch lifecycle: staging, ingestion, and
// deletion.
type UploadService struct {
	cfg       *config.Config
	store     *BatchStore
	staging   *files.Staging
	validator *validation.UploadValidator
	parser    *dataprocessing.Parser
	analyzer  *dataprocessing.Analyzer
	queue     *jobs.Queue
	publisher ProgressPublisher
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger
}

// NewUploadService wires the upload service. metrics may be nil; publisher
// must not be.
func NewUploadService(
	cfg *config.Config,
	store *BatchStore,
	staging *files.Staging,
	queue *jobs.Queue,
	publisher ProgressPublisher,
	metrics *infrastructure.BusinessMetrics,
	logger *slog.Logger,
) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &UploadService{
		cfg:       cfg,
		store:     store,
		staging:   staging,
		validator: validation.NewUploadValidator(cfg.Upload, logger),
		parser:    dataprocessing.NewParser(logger, cfg.Upload.HeaderScanRows),
		analyzer:  dataprocessing.NewAnalyzer(logger),
		queue:     queue,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "upload_service")),
	}
	queue.RegisterExecutor(jobs.JobTypeIngest, jobs.ExecutorFunc(svc.executeIngest))
	return svc
}

// CreateBatch validates and stages the uploaded workbooks, records the
// batch, and queues its ingest job. Any invalid part fails the whole
// request before staging side effects become visible to readers.
func (s *UploadService) CreateBatch(ctx context.Context, parts []UploadPart) (*domain.UploadBatch, error) {
	if err := s.validator.ValidateBatchCount(len(parts)); err != nil {
		return nil, err
	}

	batchID := uuid.New().String()
	batch := &domain.UploadBatch{
		ID:            batchID,
		State:         domain.BatchStatePending,
		ReceivedFiles: len(parts),
		CreatedAt:     time.Now(),
	}

	staged := make(map[string]bool, len(parts))
	fingerprints := make(map[string]string, len(parts))

	for _, part := range parts {
		name, err := s.validator.ValidatePart(part.Name, part.Size)
		if err != nil {
			s.staging.RemoveBatch(batchID)
			if s.metrics != nil {
				s.metrics.UploadRejected.Add(ctx, 1)
			}
			return nil, err
		}
		name = uniqueName(name, staged)
		staged[name] = true

		hasher, err := blake2b.New256(nil)
		if err != nil {
			s.staging.RemoveBatch(batchID)
			return nil, errors.NewStorageError("failed to initialize fingerprint hash", err)
		}

		_, size, err := s.staging.Stage(batchID, name, io.TeeReader(part.Reader, hasher))
		if err != nil {
			s.staging.RemoveBatch(batchID)
			return nil, errors.NewStorageError(fmt.Sprintf("failed to stage %q", name), err)
		}

		fingerprint := hex.EncodeToString(hasher.Sum(nil))
		result := domain.FileResult{
			FileName:    name,
			Status:      domain.FileStatusPending,
			SizeBytes:   size,
			Fingerprint: fingerprint,
		}
		// Duplicate content within the batch is flagged but still ingested.
		if first, seen := fingerprints[fingerprint]; seen {
			result.Duplicate = true
			s.logger.InfoContext(ctx, "duplicate workbook content in batch",
				slog.String("batch_id", batchID),
				slog.String("file", name),
				slog.String("matches", first))
		} else {
			fingerprints[fingerprint] = name
		}
		batch.Files = append(batch.Files, result)

		if s.metrics != nil {
			s.metrics.UploadFilesReceived.Add(ctx, 1)
			s.metrics.UploadBytesReceived.Add(ctx, size)
		}
	}

	for _, evicted := range s.store.SaveBatch(batch) {
		if err := s.staging.RemoveBatch(evicted); err != nil {
			s.logger.WarnContext(ctx, "failed to remove evicted batch staging",
				slog.String("batch_id", evicted),
				slog.String("error", err.Error()))
		}
	}

	job := &jobs.Job{
		ID:      uuid.New().String(),
		Type:    jobs.JobTypeIngest,
		Payload: batchID,
		TraceID: infrastructure.GetTraceID(ctx),
	}
	if err := s.queue.Submit(job); err != nil {
		s.store.UpdateBatch(batchID, func(b *domain.UploadBatch) {
			b.State = domain.BatchStateFailed
			b.Error = err.Error()
			now := time.Now()
			b.CompletedAt = &now
		})
		s.publisher.PublishBatchFailed(batchID, err.Error())
		return nil, errors.NewStorageError("failed to queue ingest job", err)
	}

	s.store.UpdateBatch(batchID, func(b *domain.UploadBatch) {
		b.JobID = job.ID
	})
	batch.JobID = job.ID

	s.publisher.PublishBatchQueued(batchID, job.ID, len(parts))
	s.logger.InfoContext(ctx, "upload batch created",
		slog.String("batch_id", batchID),
		slog.String("job_id", job.ID),
		slog.Int("files", len(parts)))

	result, _ := s.store.GetBatch(batchID)
	return result, nil
}

// executeIngest adapts Ingest to the job queue.
func (s *UploadService) executeIngest(ctx context.Context, job *jobs.Job) error {
	ingestCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.IngestTimeout)
	defer cancel()
	return s.Ingest(ingestCtx, job.Payload)
}

// Ingest extracts every staged workbook of the batch with bounded
// concurrency, consolidates the extracts in upload order, analyzes the
// result, and stores dataset and report. Per-file errors become file
// results; only staging or storage failures fail the batch.
func (s *UploadService) Ingest(ctx context.Context, batchID string) error {
	batch, ok := s.store.GetBatch(batchID)
	if !ok {
		return errors.NewNotFoundError("batch " + batchID)
	}

	started := time.Now()
	s.store.UpdateBatch(batchID, func(b *domain.UploadBatch) {
		b.State = domain.BatchStateProcessing
		b.StartedAt = &started
	})
	infrastructure.RecordActiveBatchChange(ctx, s.metrics, 1)
	defer infrastructure.RecordActiveBatchChange(ctx, s.metrics, -1)

	total := len(batch.Files)
	extracts := make([]*dataprocessing.FileExtract, total)

	var progressMu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Upload.ParseWorkers)

	for i := range batch.Files {
		i := i
		file := batch.Files[i]
		g.Go(func() error {
			s.publisher.PublishFileProcessing(batchID, file.FileName)
			fileStart := time.Now()

			extract, err := s.parser.ExtractFile(gctx, s.staging.StagedPath(batchID, file.FileName))

			result := domain.FileResult{
				FileName:    file.FileName,
				SizeBytes:   file.SizeBytes,
				Fingerprint: file.Fingerprint,
				Duplicate:   file.Duplicate,
			}
			switch {
			case err != nil:
				result.Status = domain.FileStatusFailed
				result.Error = err.Error()
				s.logger.WarnContext(gctx, "workbook extraction failed",
					slog.String("batch_id", batchID),
					slog.String("file", file.FileName),
					slog.String("error", err.Error()))
			default:
				result.Status = extract.Status
				result.FileHeaders = extract.FileHeaders
				result.CanonicalHeaders = extract.CanonicalHeaders
				result.RowCount = extract.RowCount()
				extracts[i] = extract
			}

			infrastructure.RecordFileMetrics(gctx, s.metrics, batchID,
				string(result.Status), int64(result.RowCount), time.Since(fileStart))

			progressMu.Lock()
			completed++
			doneCount := completed
			progressMu.Unlock()

			s.store.UpdateBatch(batchID, func(b *domain.UploadBatch) {
				if r := b.FileResultFor(file.FileName); r != nil {
					*r = result
				}
			})

			s.publisher.PublishFileDone(batchID, file.FileName, string(result.Status),
				result.RowCount, result.CanonicalHeaders, result.Error)
			s.publisher.PublishBatchProgress(batchID, doneCount, total)
			return nil
		})
	}
	// Extraction goroutines never return errors; waiting only synchronizes.
	g.Wait()

	dataset := dataprocessing.Consolidate(extracts)
	report := s.analyzer.Analyze(ctx, dataset)
	report.BatchID = batchID

	s.store.SaveResults(batchID, dataset, report)

	processedFiles := 0
	for _, extract := range extracts {
		if extract != nil && extract.Status == domain.FileStatusProcessed {
			processedFiles++
		}
	}

	completedAt := time.Now()
	s.store.UpdateBatch(batchID, func(b *domain.UploadBatch) {
		b.State = domain.BatchStateCompleted
		b.ProcessedFiles = processedFiles
		b.TotalRows = dataset.RowCount()
		b.CompletedAt = &completedAt
	})

	infrastructure.RecordBatchMetrics(ctx, s.metrics, batchID,
		time.Since(started), processedFiles, total, true)

	s.publisher.PublishBatchCompleted(batchID, processedFiles, dataset.RowCount(), report.Warning)
	s.logger.InfoContext(ctx, "batch ingest completed",
		slog.String("batch_id", batchID),
		slog.Int("processed_files", processedFiles),
		slog.Int("total_files", total),
		slog.Int("rows", dataset.RowCount()),
		slog.Duration("duration", time.Since(started)))

	return nil
}

// GetBatch returns the batch with its per-file results.
func (s *UploadService) GetBatch(ctx context.Context, batchID string) (*domain.UploadBatch, error) {
	batch, ok := s.store.GetBatch(batchID)
	if !ok {
		return nil, errors.NewNotFoundError("batch " + batchID)
	}
	return batch, nil
}

// ListBatches returns a page of batches, newest first.
func (s *UploadService) ListBatches(ctx context.Context, state domain.BatchState, offset, limit int) ([]*domain.UploadBatch, int, error) {
	batches, total := s.store.ListBatches(state, offset, limit)
	return batches, total, nil
}

// DeleteBatch removes the batch record, its dataset and report, and the
// staged workbooks.
func (s *UploadService) DeleteBatch(ctx context.Context, batchID string) error {
	if !s.store.Delete(batchID) {
		return errors.NewNotFoundError("batch " + batchID)
	}
	if err := s.staging.RemoveBatch(batchID); err != nil {
		return errors.NewStorageError("failed to remove staged files", err)
	}
	s.logger.InfoContext(ctx, "batch deleted", slog.String("batch_id", batchID))
	return nil
}

// uniqueName disambiguates repeated filenames within one batch by suffixing
// a counter before the extension, so staging never overwrites a sibling.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
