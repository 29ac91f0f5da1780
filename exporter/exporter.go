// Package exporter persists extracted records as CSV.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/use-agent/shelfscan/models"
)

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.CSVHeader); err != nil {
		return err
	}
	for i := range records {
		if err := cw.Write(records[i].CSVRow()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes records to path, creating parent directories. The file
// is replaced atomically so a failed run never leaves a truncated export.
func WriteFile(path string, records []models.Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return models.NewScrapeError(models.ErrCodeExport, fmt.Sprintf("create %s", dir), err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return models.NewScrapeError(models.ErrCodeExport, "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, records); err != nil {
		tmp.Close()
		return models.NewScrapeError(models.ErrCodeExport, fmt.Sprintf("write %s", path), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return models.NewScrapeError(models.ErrCodeExport, fmt.Sprintf("chmod %s", path), err)
	}
	if err := tmp.Close(); err != nil {
		return models.NewScrapeError(models.ErrCodeExport, fmt.Sprintf("write %s", path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return models.NewScrapeError(models.ErrCodeExport, fmt.Sprintf("rename to %s", path), err)
	}
	return nil
}
