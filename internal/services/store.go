package services

import (
	"sort"
	"sync"

	"fundlens/internal/config"
	"fundlens/pkg/contracts/domain"
)

// BatchStore holds upload batches with their consolidated datasets and
// analysis reports in memory. It retains at most `retain` batches; saving
// beyond that evicts the oldest terminal batches and reports their IDs so
// the caller can remove staged files.
type BatchStore struct {
	mu       sync.RWMutex
	batches  map[string]*domain.UploadBatch
	datasets map[string]*domain.Dataset
	reports  map[string]*domain.AnalysisReport
	order    []string // batch IDs in creation order, oldest first
	retain   int
}

// NewBatchStore creates a store retaining at most retain batches. Values
// <= 0 fall back to the configured default.
func NewBatchStore(retain int) *BatchStore {
	if retain <= 0 {
		retain = config.DefaultRetainBatches
	}
	return &BatchStore{
		batches:  make(map[string]*domain.UploadBatch),
		datasets: make(map[string]*domain.Dataset),
		reports:  make(map[string]*domain.AnalysisReport),
		retain:   retain,
	}
}

// SaveBatch inserts a new batch and returns the IDs evicted to stay within
// the retention cap. Active batches are never evicted.
func (s *BatchStore) SaveBatch(batch *domain.UploadBatch) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; !exists {
		s.order = append(s.order, batch.ID)
	}
	s.batches[batch.ID] = batch

	var evicted []string
	for len(s.order) > s.retain {
		dropped := false
		for i, id := range s.order {
			candidate := s.batches[id]
			if candidate != nil && !candidate.Done() {
				continue
			}
			s.order = append(s.order[:i], s.order[i+1:]...)
			delete(s.batches, id)
			delete(s.datasets, id)
			delete(s.reports, id)
			evicted = append(evicted, id)
			dropped = true
			break
		}
		if !dropped {
			break
		}
	}
	return evicted
}

// GetBatch returns a copy of the batch, or false when unknown.
func (s *BatchStore) GetBatch(id string) (*domain.UploadBatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[id]
	if !ok {
		return nil, false
	}
	return copyBatch(batch), true
}

// UpdateBatch applies fn to the stored batch under the write lock.
func (s *BatchStore) UpdateBatch(id string, fn func(*domain.UploadBatch)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[id]
	if !ok {
		return false
	}
	fn(batch)
	return true
}

// ListBatches returns copies of the stored batches, newest first,
// optionally filtered by state. total counts matches before paging.
func (s *BatchStore) ListBatches(state domain.BatchState, offset, limit int) (batches []*domain.UploadBatch, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.UploadBatch, 0, len(s.order))
	for _, id := range s.order {
		batch := s.batches[id]
		if batch == nil {
			continue
		}
		if state != "" && batch.State != state {
			continue
		}
		matched = append(matched, batch)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total = len(matched)
	if offset >= total {
		return nil, total
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	batches = make([]*domain.UploadBatch, len(matched))
	for i, batch := range matched {
		batches[i] = copyBatch(batch)
	}
	return batches, total
}

// LatestCompleted returns a copy of the most recently completed batch.
func (s *BatchStore) LatestCompleted() (*domain.UploadBatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.UploadBatch
	for _, batch := range s.batches {
		if batch.State != domain.BatchStateCompleted {
			continue
		}
		if latest == nil || batch.CreatedAt.After(latest.CreatedAt) {
			latest = batch
		}
	}
	if latest == nil {
		return nil, false
	}
	return copyBatch(latest), true
}

// SaveResults stores the ingest outputs for a batch.
func (s *BatchStore) SaveResults(id string, dataset *domain.Dataset, report *domain.AnalysisReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[id] = dataset
	s.reports[id] = report
}

// Dataset returns the consolidated dataset for a batch.
func (s *BatchStore) Dataset(id string) (*domain.Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dataset, ok := s.datasets[id]
	return dataset, ok
}

// Report returns the analysis report for a batch.
func (s *BatchStore) Report(id string) (*domain.AnalysisReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	return report, ok
}

// Delete removes a batch with its dataset and report.
func (s *BatchStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[id]; !ok {
		return false
	}
	delete(s.batches, id)
	delete(s.datasets, id)
	delete(s.reports, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of stored batches.
func (s *BatchStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}

// copyBatch clones a batch so callers cannot mutate stored state.
func copyBatch(batch *domain.UploadBatch) *domain.UploadBatch {
	clone := *batch
	clone.Files = make([]domain.FileResult, len(batch.Files))
	copy(clone.Files, batch.Files)
	return &clone
}
