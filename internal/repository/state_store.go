package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"FxPilot/internal/domain/models"
	"FxPilot/pkg/logger"
)

// FileStateStore persists the portfolio state as one JSON document.
// Save writes a sibling temp file and renames it over the target, so a
// crash mid-write leaves the previous document intact.
type FileStateStore struct {
	path string
	l    *logger.Logger
}

func NewFileStateStore(path string, l *logger.Logger) *FileStateStore {
	return &FileStateStore{path: path, l: l}
}

// Load reads the document. A missing file returns (nil, nil) so the caller
// can seed defaults; a malformed file is an error, never silently replaced.
func (s *FileStateStore) Load() (*models.PortfolioState, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var st models.PortfolioState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if st.Holdings == nil {
		st.Holdings = make(map[string]float64)
	}
	if st.Allocations == nil {
		st.Allocations = make(map[string]float64)
	}
	if st.AccuracyHistory == nil {
		st.AccuracyHistory = make(map[string]*models.AccuracyRecord)
	}
	if st.ReverseModels == nil {
		st.ReverseModels = []string{}
	}
	return &st, nil
}

func (s *FileStateStore) Save(st *models.PortfolioState) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
