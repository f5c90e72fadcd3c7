package output

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/poedb-scraper/pkg/models"
	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

// WriteRunMetadata writes a YAML summary of the run to path.
// If the output file exists its SHA-256 is filled in first.
func WriteRunMetadata(path string, meta models.RunMetadata, log *logrus.Entry) error {
	if meta.OutputFile != "" && meta.OutputSHA256 == "" {
		if sum, err := fileSHA256(meta.OutputFile); err == nil {
			meta.OutputSHA256 = sum
		} else {
			log.Debugf("Not hashing output file '%s': %v", meta.OutputFile, err)
		}
	}

	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata to YAML: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: creating metadata directory '%s': %w", utils.ErrFilesystem, dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Errorf("Failed to write metadata YAML file '%s': %v", path, err)
		return fmt.Errorf("%w: writing metadata YAML file '%s': %w", utils.ErrFilesystem, path, err)
	}

	log.Infof("Wrote run metadata (run %s, %d records) to %s", meta.RunID, meta.RecordsWritten, path)
	return nil
}

// fileSHA256 returns the hex SHA-256 of the file at path
func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrFilesystem, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("%w: hashing '%s': %w", utils.ErrFilesystem, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
