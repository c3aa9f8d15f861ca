// Package results persists the accumulated vendor records as a single JSON
// document. The document is the tool's published output: every save rewrites
// it in full, so readers never observe a partial write, and records from
// prior runs are preserved by loading before appending.
package results

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scoutline/vendorscout/internal/model"
)

// Store reads and writes the vendor result document.
type Store struct {
	path string
}

// NewStore creates a Store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted result set. A missing file yields an empty set.
// A file that does not parse yields an empty set with a warning; the corrupt
// bytes stay on disk until the next save overwrites them.
func (s *Store) Load() (*model.ResultSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewResultSet(), nil
		}
		return nil, eris.Wrap(err, "results: read document")
	}

	var rs model.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		zap.L().Warn("results: existing document is not valid JSON, starting fresh",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return model.NewResultSet(), nil
	}
	if rs.Vendors == nil {
		rs.Vendors = []model.Vendor{}
	}

	return &rs, nil
}

// Save overwrites the document with the full result set, pretty-printed.
func (s *Store) Save(rs *model.ResultSet) error {
	if rs.Vendors == nil {
		rs.Vendors = []model.Vendor{}
	}

	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return eris.Wrap(err, "results: marshal document")
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "results: create output directory")
		}
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return eris.Wrap(err, "results: write document")
	}

	return nil
}
