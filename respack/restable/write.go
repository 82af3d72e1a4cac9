package restable

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/registry"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Write encodes items and replaces path with the result. The table is written to a
// sibling temp file first so an error never leaves a partial index behind.
func Write(fs afero.Fs, path string, items Table) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	return WriteAtomic(fs, path, data)
}

// WriteAtomic writes data to a temp file next to path and renames it into place.
func WriteAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return common.WrapError(err, "failed to create %s", dir)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		_ = fs.Remove(tmp)
		return common.WrapError(err, "failed to write %s", tmp)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return common.WrapError(err, "failed to replace %s", path)
	}
	return nil
}

type idDefinedDoc struct {
	Record []idDefinedRecord `json:"record"`
}

type idDefinedRecord struct {
	Type string `json:"type"`
	Name string `json:"name"`
	ID   string `json:"id"`
}

// EncodeIDDefined renders ids as an application declaration document, ids ascending.
// The next build reads it back as its id cache.
func EncodeIDDefined(ids []registry.ResourceID) ([]byte, error) {
	sorted := append([]registry.ResourceID(nil), ids...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	doc := idDefinedDoc{Record: make([]idDefinedRecord, 0, len(sorted))}
	for _, r := range sorted {
		doc.Record = append(doc.Record, idDefinedRecord{Type: r.Type, Name: r.Name, ID: fmt.Sprintf("0x%08x", r.ID)})
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, common.WrapError(err, "failed to encode id document")
	}
	return append(data, '\n'), nil
}

// WriteIDDefined writes the companion id document to path.
func WriteIDDefined(fs afero.Fs, path string, ids []registry.ResourceID) error {
	data, err := EncodeIDDefined(ids)
	if err != nil {
		return err
	}
	return WriteAtomic(fs, path, data)
}
