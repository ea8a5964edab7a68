package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kalifa4y/swppr/internal/domain"
)

// Export is a point-in-time copy of the exchange history written to a
// standalone JSON file, for backup or moving between machines.
type Export struct {
	TsUnix  int64                   `json:"ts"`
	Records []domain.ExchangeRecord `json:"records"`
}

// ExportManager writes history exports to a directory.
type ExportManager struct {
	dir string
}

// NewExportManager creates an export manager rooted at dir.
func NewExportManager(dir string) *ExportManager {
	return &ExportManager{dir: dir}
}

// Save writes the records to a timestamped export file and returns its path.
func (em *ExportManager) Save(records []domain.ExchangeRecord) (string, error) {
	if err := os.MkdirAll(em.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	exp := Export{
		TsUnix:  time.Now().Unix(),
		Records: records,
	}

	filename := fmt.Sprintf("history_%d.json", exp.TsUnix)
	path := filepath.Join(em.dir, filename)

	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	slog.Info("History exported",
		slog.Int("records", len(records)),
		slog.String("path", path))

	return path, nil
}

// LoadLatest loads the most recent export from disk. Returns nil if none
// exist.
func (em *ExportManager) LoadLatest() (*Export, error) {
	entries, err := os.ReadDir(em.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read export dir: %w", err)
	}

	var latestPath string
	var latestTs int64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "history_%d.json", &ts); err != nil {
			continue
		}
		if ts > latestTs {
			latestTs = ts
			latestPath = filepath.Join(em.dir, entry.Name())
		}
	}

	if latestPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(latestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export: %w", err)
	}
	return &exp, nil
}
