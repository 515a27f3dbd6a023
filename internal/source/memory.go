// Package source provides DataSource implementations: an in-memory workbook
// set, a directory of CSV files, and XLSX workbooks.
//
// All implementations share the lookup contract: files match by exact,
// case-sensitive name with first-match-wins on duplicates, and sheets match
// by exact name within the chosen file.
package source

import (
	"sheetql/internal/domain"
)

type memSheet struct {
	name  string
	cells [][]string
}

type memBook struct {
	name   string
	sheets []memSheet
}

// Memory is an in-memory DataSource for tests and embedding. Duplicate file
// names are allowed so first-match-wins behavior can be exercised.
type Memory struct {
	books []*memBook
}

// NewMemory returns an empty in-memory source.
func NewMemory() *Memory { return &Memory{} }

// AddSheet registers a sheet under the named file, creating the file on
// first use. Cells must start with the header row.
func (m *Memory) AddSheet(file, sheet string, cells [][]string) {
	for _, b := range m.books {
		if b.name == file {
			b.sheets = append(b.sheets, memSheet{name: sheet, cells: cells})
			return
		}
	}
	m.books = append(m.books, &memBook{name: file, sheets: []memSheet{{name: sheet, cells: cells}}})
}

// AddFile registers a new file even if one with the same name already
// exists, for exercising duplicate-name resolution.
func (m *Memory) AddFile(file string) {
	m.books = append(m.books, &memBook{name: file})
}

// Lookup implements domain.DataSource.
func (m *Memory) Lookup(fileName, sheetName string) (*domain.Sheet, error) {
	var first *memBook
	matches := 0
	for _, b := range m.books {
		if b.name == fileName {
			if first == nil {
				first = b
			}
			matches++
		}
	}
	if first == nil {
		return nil, &domain.FileNotFoundError{File: fileName}
	}
	for _, s := range first.sheets {
		if s.name == sheetName {
			return &domain.Sheet{File: fileName, Name: sheetName, Cells: s.cells, FileMatches: matches}, nil
		}
	}
	return nil, &domain.SheetNotFoundError{File: fileName, Sheet: sheetName}
}

// Tables implements domain.DataSource.
func (m *Memory) Tables() ([]domain.TableDescriptor, error) {
	var out []domain.TableDescriptor
	for _, b := range m.books {
		for _, s := range b.sheets {
			d := domain.TableDescriptor{File: b.name, Sheet: s.name}
			if len(s.cells) > 0 {
				d.Columns = len(s.cells[0])
				d.Rows = len(s.cells) - 1
			}
			out = append(out, d)
		}
	}
	return out, nil
}
