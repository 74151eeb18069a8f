package repository

import (
	"encoding/json"
	"os"
	"path/filepath"

	"StockRank/internal/domain/models"
)

const (
	SuccessReportFile = ".lastrun.success.json"
	FailedReportFile  = ".lastrun.failed.json"
)

// WriteRunReport stores the success list and the failure list of a batch run next to
// its outputs. Empty lists remove the stale file from the previous run.
func WriteRunReport(dir string, report models.RunReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeOrRemove(filepath.Join(dir, SuccessReportFile), report.Success, len(report.Success)); err != nil {
		return err
	}
	return writeOrRemove(filepath.Join(dir, FailedReportFile), report.Failed, len(report.Failed))
}

func writeOrRemove(path string, v interface{}, n int) error {
	if n == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
