package ports

import (
	"gomediate/domain/table"
)

// Dataset is an ingested observation table plus ingestion notes.
type Dataset struct {
	// Name is derived from the source (file stem).
	Name string `json:"name"`
	// Table holds the numeric columns, one row per observation.
	Table *table.Table `json:"table"`
	// DroppedColumns lists source columns skipped as non-numeric.
	DroppedColumns []string `json:"dropped_columns,omitempty"`
}

// DatasetReader loads observed datasets from external files.
type DatasetReader interface {
	Read(path string) (*Dataset, error)
}
