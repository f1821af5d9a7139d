package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundlens/internal/dataprocessing"
	"fundlens/internal/errors"
	"fundlens/pkg/contracts/domain"
)

func testDataset(n int) *domain.Dataset {
	dataset := &domain.Dataset{
		Columns: []string{
			dataprocessing.HeaderFundName,
			"Sub-Fund Name",
			dataprocessing.HeaderDomicile,
			dataprocessing.HeaderLegalStatus,
			domain.SourceFileColumn,
		},
		CreatedAt: time.Now(),
	}
	domiciles := []string{"Luxembourg", "Ireland", "Luxembourg", "", "Malta"}
	for i := 0; i < n; i++ {
		dataset.Records = append(dataset.Records, domain.Record{
			dataprocessing.HeaderFundName: fmt.Sprintf("Fund %d", i),
			"Sub-Fund Name":               fmt.Sprintf("Fund %d Class A", i),
			dataprocessing.HeaderDomicile: domiciles[i%len(domiciles)],
			domain.SourceFileColumn:       "funds.xlsx",
		})
	}
	return dataset
}

// seedBatch stores a completed batch with its dataset and analyzed report.
func seedBatch(t *testing.T, store *BatchStore, id string, createdAt time.Time, rows int) {
	t.Helper()

	store.SaveBatch(&domain.UploadBatch{
		ID:        id,
		State:     domain.BatchStateCompleted,
		CreatedAt: createdAt,
	})

	dataset := testDataset(rows)
	analyzer := dataprocessing.NewAnalyzer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	report := analyzer.Analyze(context.Background(), dataset)
	report.BatchID = id
	store.SaveResults(id, dataset, report)
}

func newAnalysisFixture(t *testing.T) (*AnalysisService, *BatchStore) {
	t.Helper()
	store := NewBatchStore(20)
	return NewAnalysisService(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrTypeNotFound, appErr.Type)
}

func TestReport_ResolvesLatestCompleted(t *testing.T) {
	svc, store := newAnalysisFixture(t)
	base := time.Now().Add(-time.Hour)
	seedBatch(t, store, "older", base, 3)
	seedBatch(t, store, "newer", base.Add(time.Minute), 5)

	report, err := svc.Report(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "newer", report.BatchID)
	assert.Equal(t, 5, report.TotalRows)

	report, err = svc.Report(context.Background(), "older")
	require.NoError(t, err)
	assert.Equal(t, "older", report.BatchID)
}

func TestReport_NoBatches(t *testing.T) {
	svc, _ := newAnalysisFixture(t)

	_, err := svc.Report(context.Background(), "")
	requireNotFound(t, err)

	_, err = svc.Report(context.Background(), "unknown")
	requireNotFound(t, err)
}

func TestFieldDistribution_StoredSection(t *testing.T) {
	svc, store := newAnalysisFixture(t)
	seedBatch(t, store, "b1", time.Now(), 5)

	dist, err := svc.FieldDistribution(context.Background(), "b1", dataprocessing.HeaderDomicile)
	require.NoError(t, err)
	assert.Equal(t, dataprocessing.HeaderDomicile, dist.Field)
	assert.Equal(t, 5, dist.Total)
	require.NotEmpty(t, dist.Counts)
	assert.Equal(t, "Luxembourg", dist.Counts[0].Value)
	assert.Equal(t, 2, dist.Counts[0].Count)
}

func TestFieldDistribution_CaseInsensitiveSelector(t *testing.T) {
	svc, store := newAnalysisFixture(t)
	seedBatch(t, store, "b1", time.Now(), 5)

	dist, err := svc.FieldDistribution(context.Background(), "b1", "domicile")
	require.NoError(t, err)
	assert.Equal(t, dataprocessing.HeaderDomicile, dist.Field)
}

func TestFieldDistribution_OnDemandForUnanalyzedColumn(t *testing.T) {
	svc, store := newAnalysisFixture(t)
	seedBatch(t, store, "b1", time.Now(), 4)

	// Sub-Fund Name has no stored report section, so the distribution is
	// computed from the dataset on request.
	dist, err := svc.FieldDistribution(context.Background(), "b1", "Sub-Fund Name")
	require.NoError(t, err)
	assert.Equal(t, "Sub-Fund Name", dist.Field)
	assert.Equal(t, 4, dist.Total)
	assert.Equal(t, 4, dist.Unique)
}

func TestFieldDistribution_UnknownField(t *testing.T) {
	svc, store := newAnalysisFixture(t)
	seedBatch(t, store, "b1", time.Now(), 3)

	_, err := svc.FieldDistribution(context.Background(), "b1", "Not A Registry Field")
	requireNotFound(t, err)
}

func TestFieldDistribution_AbsentColumn(t *testing.T) {
	svc, store := newAnalysisFixture(t)
	seedBatch(t, store, "b1", time.Now(), 3)

	// Industry is a registry header, but the dataset has no such column.
	_, err := svc.FieldDistribution(context.Background(), "b1", dataprocessing.HeaderIndustry)
	requireNotFound(t, err)
}

func TestChart_StoredAndOnDemand(t *testing.T) {
	svc, store := newAnalysisFixture(t)
	seedBatch(t, store, "b1", time.Now(), 5)

	chart, err := svc.Chart(context.Background(), "b1", dataprocessing.HeaderDomicile)
	require.NoError(t, err)
	assert.Equal(t, dataprocessing.HeaderDomicile, chart.Field)
	assert.Len(t, chart.Labels, len(chart.Values))

	chart, err = svc.Chart(context.Background(), "b1", dataprocessing.HeaderFundName)
	require.NoError(t, err)
	assert.Equal(t, domain.ChartVertical, chart.Orientation)

	_, err = svc.Chart(context.Background(), "b1", "nonsense")
	requireNotFound(t, err)
}

func TestData_Paging(t *testing.T) {
	svc, store := newAnalysisFixture(t)
	seedBatch(t, store, "b1", time.Now(), 10)

	page, err := svc.Data(context.Background(), "b1", 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, page.Total)
	assert.Len(t, page.Records, 4)
	assert.Equal(t, "Fund 0", page.Records[0].Get(dataprocessing.HeaderFundName))

	page, err = svc.Data(context.Background(), "b1", 4, 8)
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
	assert.Equal(t, "Fund 8", page.Records[0].Get(dataprocessing.HeaderFundName))

	page, err = svc.Data(context.Background(), "b1", 4, 100)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, 10, page.Total)

	// Negative offset and zero limit fall back to sane defaults.
	page, err = svc.Data(context.Background(), "b1", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Offset)
	assert.Greater(t, page.Limit, 0)
}

func TestHeaders(t *testing.T) {
	svc, store := newAnalysisFixture(t)

	// Without any completed batch the registry is still returned.
	summary, err := svc.Headers(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, summary.BatchID)
	assert.Equal(t, dataprocessing.CanonicalHeaders(), summary.Registry)

	_, err = svc.Headers(context.Background(), "unknown")
	requireNotFound(t, err)

	seedBatch(t, store, "b1", time.Now(), 5)
	summary, err = svc.Headers(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "b1", summary.BatchID)
	assert.NotEmpty(t, summary.Registry)
}

func TestDataset_EmptyIsNotFound(t *testing.T) {
	svc, store := newAnalysisFixture(t)

	store.SaveBatch(&domain.UploadBatch{
		ID:        "empty",
		State:     domain.BatchStateCompleted,
		CreatedAt: time.Now(),
	})
	store.SaveResults("empty", &domain.Dataset{}, &domain.AnalysisReport{BatchID: "empty", Empty: true})

	_, err := svc.Dataset(context.Background(), "empty")
	requireNotFound(t, err)

	seedBatch(t, store, "b1", time.Now(), 3)
	dataset, err := svc.Dataset(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 3, dataset.RowCount())
}
