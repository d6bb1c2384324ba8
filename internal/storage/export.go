package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/servoloop/internal/datalog"
)

type ExportData struct {
	RunMetadata
	Rows []datalog.Row `json:"rows"`
}

// ExportJSON writes the metadata and rows of a run as one JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, rows []datalog.Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{RunMetadata: meta, Rows: rows})
}
