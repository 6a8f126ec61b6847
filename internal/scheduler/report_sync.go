package scheduler

import (
	"github.com/MrSnakeDoc/ollamon/internal/index"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/report"
)

// ReportSyncer seeds the memory index from the last report file on startup
type ReportSyncer struct {
	path   string
	index  *index.MemoryIndex
	logger logger.Logger
}

// NewReportSyncer creates a new report syncer
func NewReportSyncer(path string, idx *index.MemoryIndex, log logger.Logger) *ReportSyncer {
	return &ReportSyncer{
		path:   path,
		index:  idx,
		logger: log,
	}
}

// Sync loads the report file and updates the memory index
func (rs *ReportSyncer) Sync() error {
	rs.logger.Info("syncing last report to memory", logger.String("path", rs.path))

	records, err := report.Load(rs.path)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		rs.logger.Info("no previous report found")
		return nil
	}

	rs.index.UpdateRecords(records)

	rs.logger.Info("synced records from report",
		logger.Int("count", len(records)))

	return nil
}
