package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"committed-cart/models"
)

// CartExport is a reconstructed cart written to disk.
type CartExport struct {
	ID                 string             `json:"id"`
	ExportedAt         time.Time          `json:"exported_at"`
	RoundAddress       common.Address     `json:"round_address"`
	ContributorAddress common.Address     `json:"contributor_address"`
	Items              []*models.CartItem `json:"items"`
}

func NewCartExport(round, contributor common.Address, items []*models.CartItem) *CartExport {
	if items == nil {
		items = make([]*models.CartItem, 0)
	}
	return &CartExport{
		ID:                 uuid.New().String(),
		ExportedAt:         time.Now().UTC(),
		RoundAddress:       round,
		ContributorAddress: contributor,
		Items:              items,
	}
}

// SaveCartExport writes export to path, replacing any previous file
// atomically.
func SaveCartExport(path string, export *CartExport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create export directory")
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal export")
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrap(err, "write export file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "save export file")
	}
	return nil
}

// LoadCartExport reads an export written by SaveCartExport.
func LoadCartExport(path string) (*CartExport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read export file")
	}
	var export CartExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, errors.Wrap(err, "unmarshal export")
	}
	return &export, nil
}
