package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fundlens/internal/config"
	"fundlens/internal/errors"
	"fundlens/internal/files"
	"fundlens/internal/jobs"
	"fundlens/pkg/contracts/domain"
)

// eventRecorder captures published progress events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	kind    string
	batchID string
	file    string
	status  string
	errMsg  string
}

func (r *eventRecorder) record(e recordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) PublishBatchQueued(batchID, jobID string, totalFiles int) {
	r.record(recordedEvent{kind: "batch:queued", batchID: batchID})
}

func (r *eventRecorder) PublishFileProcessing(batchID, fileName string) {
	r.record(recordedEvent{kind: "file:processing", batchID: batchID, file: fileName})
}

func (r *eventRecorder) PublishFileDone(batchID, fileName, status string, rowCount int, headers []string, errMsg string) {
	r.record(recordedEvent{kind: "file:done", batchID: batchID, file: fileName, status: status, errMsg: errMsg})
}

func (r *eventRecorder) PublishBatchProgress(batchID string, completed, total int) {
	r.record(recordedEvent{kind: "batch:progress", batchID: batchID})
}

func (r *eventRecorder) PublishBatchCompleted(batchID string, processedFiles, totalRows int, warning string) {
	r.record(recordedEvent{kind: "batch:completed", batchID: batchID})
}

func (r *eventRecorder) PublishBatchFailed(batchID, errMsg string) {
	r.record(recordedEvent{kind: "batch:failed", batchID: batchID, errMsg: errMsg})
}

func (r *eventRecorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) byKind(kind string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// workbookBytes builds an in-memory xlsx fixture, as multipart uploads
// arrive.
func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func part(name string, content []byte) UploadPart {
	return UploadPart{Name: name, Size: int64(len(content)), Reader: bytes.NewReader(content)}
}

type uploadFixture struct {
	svc       *UploadService
	store     *BatchStore
	staging   *files.Staging
	queue     *jobs.Queue
	publisher *eventRecorder
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()

	tmpDir := t.TempDir()
	paths := &config.Paths{
		DataDir:    tmpDir,
		UploadsDir: filepath.Join(tmpDir, "uploads"),
	}

	cfg := config.Default()
	cfg.Upload.ParseWorkers = 2

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewBatchStore(cfg.Upload.RetainBatches)
	staging := files.NewStaging(paths)
	queue := jobs.NewQueue(2, jobs.NewMemoryStore(), logger)

	publisher := &eventRecorder{}
	svc := NewUploadService(cfg, store, staging, queue, publisher, nil, logger)

	return &uploadFixture{svc: svc, store: store, staging: staging, queue: queue, publisher: publisher}
}

func fundWorkbook(t *testing.T) []byte {
	return workbookBytes(t, [][]interface{}{
		{"Fund Name", "Domicile", "Legal Status"},
		{"Alpha Fund", "Luxembourg", "SICAV"},
		{"Beta Fund", "Ireland", "ICAV"},
	})
}

func TestCreateBatch_StagesAndQueues(t *testing.T) {
	fx := newUploadFixture(t)

	batch, err := fx.svc.CreateBatch(context.Background(), []UploadPart{
		part("funds.xlsx", fundWorkbook(t)),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatePending, batch.State)
	assert.Equal(t, 1, batch.ReceivedFiles)
	assert.NotEmpty(t, batch.JobID)
	require.Len(t, batch.Files, 1)
	assert.Equal(t, domain.FileStatusPending, batch.Files[0].Status)
	assert.NotEmpty(t, batch.Files[0].Fingerprint)
	assert.True(t, fx.staging.BatchExists(batch.ID))

	job, err := fx.queue.Get(batch.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobTypeIngest, job.Type)
	assert.Equal(t, batch.ID, job.Payload)

	assert.Equal(t, 1, fx.publisher.count("batch:queued"))
}

func TestCreateBatch_RejectsUnsupportedExtension(t *testing.T) {
	fx := newUploadFixture(t)

	_, err := fx.svc.CreateBatch(context.Background(), []UploadPart{
		part("funds.csv", []byte("a,b\n1,2\n")),
	})
	require.Error(t, err)
	assert.Equal(t, 0, fx.store.Count())
	assert.Equal(t, 0, fx.publisher.count("batch:queued"))
}

func TestCreateBatch_RejectsEmptyAndOversizedBatches(t *testing.T) {
	fx := newUploadFixture(t)

	_, err := fx.svc.CreateBatch(context.Background(), nil)
	require.Error(t, err)

	content := fundWorkbook(t)
	parts := make([]UploadPart, config.DefaultMaxFilesPerBatch+1)
	for i := range parts {
		parts[i] = part("funds.xlsx", content)
	}
	_, err = fx.svc.CreateBatch(context.Background(), parts)
	require.Error(t, err)
	assert.Equal(t, 0, fx.store.Count())
}

func TestCreateBatch_FlagsDuplicateContent(t *testing.T) {
	fx := newUploadFixture(t)

	content := fundWorkbook(t)
	batch, err := fx.svc.CreateBatch(context.Background(), []UploadPart{
		part("first.xlsx", content),
		part("copy.xlsx", content),
	})
	require.NoError(t, err)

	require.Len(t, batch.Files, 2)
	assert.False(t, batch.Files[0].Duplicate)
	assert.True(t, batch.Files[1].Duplicate)
	assert.Equal(t, batch.Files[0].Fingerprint, batch.Files[1].Fingerprint)
}

func TestCreateBatch_DisambiguatesRepeatedNames(t *testing.T) {
	fx := newUploadFixture(t)

	batch, err := fx.svc.CreateBatch(context.Background(), []UploadPart{
		part("funds.xlsx", fundWorkbook(t)),
		part("funds.xlsx", workbookBytes(t, [][]interface{}{
			{"Fund Name", "Domicile"},
			{"Gamma Fund", "Malta"},
		})),
	})
	require.NoError(t, err)

	require.Len(t, batch.Files, 2)
	assert.Equal(t, "funds.xlsx", batch.Files[0].FileName)
	assert.Equal(t, "funds (2).xlsx", batch.Files[1].FileName)
	assert.NotEqual(t, batch.Files[0].Fingerprint, batch.Files[1].Fingerprint)
}

func TestIngest_EndToEnd(t *testing.T) {
	fx := newUploadFixture(t)
	ctx := context.Background()

	batch, err := fx.svc.CreateBatch(ctx, []UploadPart{
		part("funds.xlsx", fundWorkbook(t)),
		part("notes.xlsx", workbookBytes(t, [][]interface{}{
			{"Comment"},
			{"no registry headers here"},
		})),
		part("broken.xlsx", []byte("this is not a workbook")),
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Ingest(ctx, batch.ID))

	got, err := fx.svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStateCompleted, got.State)
	assert.Equal(t, 1, got.ProcessedFiles)
	assert.Equal(t, 2, got.TotalRows)
	require.NotNil(t, got.CompletedAt)

	assert.Equal(t, domain.FileStatusProcessed, got.FileResultFor("funds.xlsx").Status)
	assert.Equal(t, 2, got.FileResultFor("funds.xlsx").RowCount)
	assert.Equal(t, domain.FileStatusNoHeaders, got.FileResultFor("notes.xlsx").Status)
	failed := got.FileResultFor("broken.xlsx")
	assert.Equal(t, domain.FileStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)

	dataset, ok := fx.store.Dataset(batch.ID)
	require.True(t, ok)
	assert.Equal(t, 2, dataset.RowCount())
	assert.Equal(t, domain.SourceFileColumn, dataset.Columns[len(dataset.Columns)-1])

	report, ok := fx.store.Report(batch.ID)
	require.True(t, ok)
	assert.Equal(t, batch.ID, report.BatchID)
	assert.False(t, report.Empty)

	assert.Equal(t, 3, fx.publisher.count("file:processing"))
	assert.Equal(t, 3, fx.publisher.count("file:done"))
	assert.Equal(t, 3, fx.publisher.count("batch:progress"))
	assert.Equal(t, 1, fx.publisher.count("batch:completed"))
	assert.Equal(t, 0, fx.publisher.count("batch:failed"))

	for _, e := range fx.publisher.byKind("file:done") {
		if e.file == "broken.xlsx" {
			assert.Equal(t, string(domain.FileStatusFailed), e.status)
			assert.NotEmpty(t, e.errMsg)
		}
	}
}

func TestIngest_EmptyResultStillCompletes(t *testing.T) {
	fx := newUploadFixture(t)
	ctx := context.Background()

	batch, err := fx.svc.CreateBatch(ctx, []UploadPart{
		part("notes.xlsx", workbookBytes(t, [][]interface{}{
			{"Comment"},
			{"nothing recognizable"},
		})),
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Ingest(ctx, batch.ID))

	got, _ := fx.store.GetBatch(batch.ID)
	assert.Equal(t, domain.BatchStateCompleted, got.State)
	assert.Equal(t, 0, got.ProcessedFiles)
	assert.Equal(t, 0, got.TotalRows)

	report, ok := fx.store.Report(batch.ID)
	require.True(t, ok)
	assert.True(t, report.Empty)
	assert.Equal(t, config.MsgNothingProcessed, report.Warning)
}

func TestIngest_UnknownBatch(t *testing.T) {
	fx := newUploadFixture(t)

	err := fx.svc.Ingest(context.Background(), "no-such-batch")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrTypeNotFound, appErr.Type)
}

func TestIngest_ViaJobQueue(t *testing.T) {
	fx := newUploadFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx.queue.Start(ctx)
	defer fx.queue.Stop(5 * time.Second)

	batch, err := fx.svc.CreateBatch(ctx, []UploadPart{
		part("funds.xlsx", fundWorkbook(t)),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := fx.store.GetBatch(batch.ID)
		return ok && got.Done()
	}, 10*time.Second, 20*time.Millisecond)

	got, _ := fx.store.GetBatch(batch.ID)
	assert.Equal(t, domain.BatchStateCompleted, got.State)

	job, err := fx.queue.Get(batch.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
}

func TestDeleteBatch(t *testing.T) {
	fx := newUploadFixture(t)
	ctx := context.Background()

	batch, err := fx.svc.CreateBatch(ctx, []UploadPart{
		part("funds.xlsx", fundWorkbook(t)),
	})
	require.NoError(t, err)
	require.NoError(t, fx.svc.Ingest(ctx, batch.ID))

	require.NoError(t, fx.svc.DeleteBatch(ctx, batch.ID))

	_, err = fx.svc.GetBatch(ctx, batch.ID)
	require.Error(t, err)
	assert.False(t, fx.staging.BatchExists(batch.ID))

	err = fx.svc.DeleteBatch(ctx, batch.ID)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrTypeNotFound, appErr.Type)
}

func TestListBatches(t *testing.T) {
	fx := newUploadFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := fx.svc.CreateBatch(ctx, []UploadPart{
			part("funds.xlsx", fundWorkbook(t)),
		})
		require.NoError(t, err)
	}

	batches, total, err := fx.svc.ListBatches(ctx, "", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, batches, 2)
}
