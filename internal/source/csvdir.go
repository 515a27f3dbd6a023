package source

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sheetql/internal/domain"
)

// CSVDir maps a directory tree onto spreadsheet files: each subdirectory of
// the root is a file, and each .csv inside it is a sheet named after the
// file name without extension.
type CSVDir struct {
	root string
}

// NewCSVDir returns a CSVDir rooted at the given directory.
func NewCSVDir(root string) *CSVDir { return &CSVDir{root: root} }

// Lookup implements domain.DataSource.
func (c *CSVDir) Lookup(fileName, sheetName string) (*domain.Sheet, error) {
	dir := filepath.Join(c.root, fileName)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &domain.FileNotFoundError{File: fileName}
	}
	path := filepath.Join(dir, sheetName+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.SheetNotFoundError{File: fileName, Sheet: sheetName}
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are allowed; loader aligns to header
	cells, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &domain.Sheet{File: fileName, Name: sheetName, Cells: cells, FileMatches: 1}, nil
}

// Tables implements domain.DataSource.
func (c *CSVDir) Tables() ([]domain.TableDescriptor, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", c.root, err)
	}
	var out []domain.TableDescriptor
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sheets, err := os.ReadDir(filepath.Join(c.root, e.Name()))
		if err != nil {
			return nil, err
		}
		for _, s := range sheets {
			if s.IsDir() || !strings.HasSuffix(s.Name(), ".csv") {
				continue
			}
			name := strings.TrimSuffix(s.Name(), ".csv")
			sheet, err := c.Lookup(e.Name(), name)
			if err != nil {
				continue
			}
			d := domain.TableDescriptor{File: e.Name(), Sheet: name}
			if len(sheet.Cells) > 0 {
				d.Columns = len(sheet.Cells[0])
				d.Rows = len(sheet.Cells) - 1
			}
			out = append(out, d)
		}
	}
	return out, nil
}
