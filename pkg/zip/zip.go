package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ArchiveDir packs every regular file under dir into a zip, with paths
// relative to dir. Entries are written in sorted path order so the same
// tree always produces the same archive layout.
func ArchiveDir(dir string) ([]byte, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("zip: walk %s: %w", dir, err)
	}
	sort.Strings(files)

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil, fmt.Errorf("zip: relativize %s: %w", path, err)
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return nil, fmt.Errorf("zip: create entry %s: %w", rel, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("zip: read %s: %w", path, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zip: write entry %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
