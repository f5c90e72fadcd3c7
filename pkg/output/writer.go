package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/poedb-scraper/pkg/models"
	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

// Writer serializes the final record set as delimited text lines.
type Writer struct {
	delimiter string
	log       *logrus.Entry
}

// NewWriter creates a Writer that separates name and value with delimiter
func NewWriter(delimiter string, log *logrus.Entry) *Writer {
	return &Writer{
		delimiter: delimiter,
		log:       log.WithField("component", "writer"),
	}
}

// Write sorts records by name (byte-wise) and writes one "name<delim>value" line per record to path.
// The file is built next to path and renamed into place, so a failed write never leaves a partial file.
// An existing file at path is replaced.
func (w *Writer) Write(records []models.ExtractedRecord, path string) error {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b models.ExtractedRecord) int {
		return strings.Compare(a.Name, b.Name)
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating output directory '%s': %w", utils.ErrFilesystem, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	for _, rec := range sorted {
		if w.ambiguous(rec.Name) || w.ambiguous(rec.Value) {
			w.log.WithField("item", rec.Name).Warnf("Record contains the delimiter %q or a line break; line will be ambiguous", w.delimiter)
		}
		if _, err := bw.WriteString(rec.Name + w.delimiter + rec.Value + "\n"); err != nil {
			return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, tmpPath, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: flushing '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		w.log.Debugf("Could not chmod '%s': %v", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("%w: renaming into '%s': %w", utils.ErrFilesystem, path, err)
	}
	committed = true

	w.log.WithFields(logrus.Fields{"file": path, "records": len(sorted)}).Info("Wrote results")
	return nil
}

func (w *Writer) ambiguous(s string) bool {
	return strings.Contains(s, w.delimiter) || strings.ContainsAny(s, "\r\n")
}
