package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/report"
)

// MemoryIndex holds the latest report snapshot served by the API.
type MemoryIndex struct {
	mu         sync.RWMutex
	records    map[string]domain.ServiceRecord // server -> record
	lastReload time.Time                       // Timestamp of last full snapshot swap
	lastCycle  *domain.CycleSummary
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		records: make(map[string]domain.ServiceRecord),
	}
}

// UpdateRecords replaces the whole snapshot
func (idx *MemoryIndex) UpdateRecords(records []domain.ServiceRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Clear and rebuild
	idx.records = make(map[string]domain.ServiceRecord, len(records))
	for _, r := range records {
		idx.records[r.Server] = r
	}
	idx.lastReload = time.Now()
}

// UpsertRecord adds or updates a single record
func (idx *MemoryIndex) UpsertRecord(record domain.ServiceRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.records[record.Server] = record
}

// GetRecord retrieves a record by server
func (idx *MemoryIndex) GetRecord(server string) (domain.ServiceRecord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	r, ok := idx.records[server]
	return r, ok
}

// GetAllRecords returns every record, fastest first
func (idx *MemoryIndex) GetAllRecords() []domain.ServiceRecord {
	idx.mu.RLock()
	records := make([]domain.ServiceRecord, 0, len(idx.records))
	for _, r := range idx.records {
		records = append(records, r)
	}
	idx.mu.RUnlock()

	return report.Sorted(records)
}

// Count returns the number of records in the index
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.records)
}

// GetLastReload returns the timestamp of the last snapshot swap
func (idx *MemoryIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}

// SetLastCycle stores the summary of the latest cycle
func (idx *MemoryIndex) SetLastCycle(s domain.CycleSummary) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.lastCycle = &s
}

// LastCycle returns the summary of the latest cycle, if any ran
func (idx *MemoryIndex) LastCycle() (domain.CycleSummary, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.lastCycle == nil {
		return domain.CycleSummary{}, false
	}
	return *idx.lastCycle, true
}
