package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
)

const InventoryName = "inventory.json"

// InventoryPath is where the run inventory of outDir lives.
func InventoryPath(outDir string) string {
	return filepath.Join(outDir, "logs", InventoryName)
}

// WriteInventory writes the run summary, with per-file outcomes, as indented JSON.
func WriteInventory(path string, summary types.RunSummary, stats interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create inventory directory: %w", err)
	}

	payload := struct {
		types.RunSummary
		Dataset interface{} `json:"dataset,omitempty"`
	}{RunSummary: summary, Dataset: stats}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode inventory: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
