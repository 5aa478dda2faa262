package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FilePriceStore persists catalog entries as a JSON object on disk, e.g.
// {"pro_month": "price_123"}.
type FilePriceStore struct {
	path string
}

// NewFilePriceStore creates a store for path
func NewFilePriceStore(path string) *FilePriceStore {
	return &FilePriceStore{path: path}
}

// Load returns an empty map when the file does not exist yet.
func (s *FilePriceStore) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price cache: %w", err)
	}

	prices := map[string]string{}
	if len(data) == 0 {
		return prices, nil
	}
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("failed to parse price cache %s: %w", s.path, err)
	}
	return prices, nil
}

// Save writes through a temp file so readers never see a partial document.
func (s *FilePriceStore) Save(_ context.Context, prices map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create price cache dir: %w", err)
	}
	data, err := json.MarshalIndent(prices, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write price cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace price cache: %w", err)
	}
	return nil
}
