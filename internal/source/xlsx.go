package source

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetql/internal/domain"
)

// XLSXDir exposes .xlsx workbooks under a root directory. The file name
// (base name without extension) identifies the workbook; duplicates across
// subdirectories resolve first-match-wins in walk order, with the match
// count reported on the returned sheet.
type XLSXDir struct {
	root string
}

// NewXLSXDir returns an XLSXDir rooted at the given directory.
func NewXLSXDir(root string) *XLSXDir { return &XLSXDir{root: root} }

// Lookup implements domain.DataSource.
func (x *XLSXDir) Lookup(fileName, sheetName string) (*domain.Sheet, error) {
	paths, err := x.candidates(fileName)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &domain.FileNotFoundError{File: fileName}
	}

	wb, err := excelize.OpenFile(paths[0])
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", paths[0], err)
	}
	defer wb.Close() //nolint:errcheck

	cells, err := wb.GetRows(sheetName)
	if err != nil {
		var sheetErr excelize.ErrSheetNotExist
		if errors.As(err, &sheetErr) {
			return nil, &domain.SheetNotFoundError{File: fileName, Sheet: sheetName}
		}
		return nil, fmt.Errorf("read sheet %s!%s: %w", fileName, sheetName, err)
	}
	return &domain.Sheet{File: fileName, Name: sheetName, Cells: cells, FileMatches: len(paths)}, nil
}

// Tables implements domain.DataSource.
func (x *XLSXDir) Tables() ([]domain.TableDescriptor, error) {
	var out []domain.TableDescriptor
	err := filepath.WalkDir(x.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".xlsx") {
			return err
		}
		wb, err := excelize.OpenFile(path)
		if err != nil {
			return fmt.Errorf("open workbook %s: %w", path, err)
		}
		defer wb.Close() //nolint:errcheck
		file := strings.TrimSuffix(d.Name(), ".xlsx")
		for _, sheet := range wb.GetSheetList() {
			rows, err := wb.GetRows(sheet)
			if err != nil {
				return err
			}
			desc := domain.TableDescriptor{File: file, Sheet: sheet}
			if len(rows) > 0 {
				desc.Columns = len(rows[0])
				desc.Rows = len(rows) - 1
			}
			out = append(out, desc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// candidates returns every workbook path whose base name matches fileName,
// in walk order.
func (x *XLSXDir) candidates(fileName string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(x.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.TrimSuffix(d.Name(), ".xlsx") == fileName && strings.HasSuffix(d.Name(), ".xlsx") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan data dir %s: %w", x.root, err)
	}
	return paths, nil
}
