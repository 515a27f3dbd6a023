package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"sheetql/internal/domain"
)

func writeWorkbook(t *testing.T, path string, sheets map[string][][]interface{}) {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close() //nolint:errcheck
	first := true
	for name, rows := range sheets {
		if first {
			if err := wb.SetSheetName("Sheet1", name); err != nil {
				t.Fatal(err)
			}
			first = false
		} else if _, err := wb.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := wb.SetSheetRow(name, cell, &row); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := wb.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func TestXLSXDirLookup(t *testing.T) {
	root := t.TempDir()
	writeWorkbook(t, filepath.Join(root, "Sales.xlsx"), map[string][][]interface{}{
		"2023": {
			{"date", "amount"},
			{"2023-01-02", "1200"},
		},
	})

	src := NewXLSXDir(root)
	sheet, err := src.Lookup("Sales", "2023")
	if err != nil {
		t.Fatal(err)
	}
	if len(sheet.Cells) != 2 {
		t.Fatalf("cells = %d rows, want 2", len(sheet.Cells))
	}
	if sheet.Cells[0][1] != "amount" || sheet.Cells[1][1] != "1200" {
		t.Errorf("cells = %v", sheet.Cells)
	}
	if sheet.FileMatches != 1 {
		t.Errorf("FileMatches = %d", sheet.FileMatches)
	}
}

func TestXLSXDirMissingFile(t *testing.T) {
	src := NewXLSXDir(t.TempDir())
	_, err := src.Lookup("Nope", "s")
	var notFound *domain.FileNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want FileNotFoundError", err)
	}
}

func TestXLSXDirMissingSheet(t *testing.T) {
	root := t.TempDir()
	writeWorkbook(t, filepath.Join(root, "Sales.xlsx"), map[string][][]interface{}{
		"2023": {{"a"}},
	})
	src := NewXLSXDir(root)
	_, err := src.Lookup("Sales", "2099")
	var notFound *domain.SheetNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want SheetNotFoundError", err)
	}
}

func TestXLSXDirDuplicateFilesFirstWins(t *testing.T) {
	root := t.TempDir()
	// Walk order is lexical: a/ comes before b/.
	writeWorkbook(t, filepath.Join(root, "a", "Dup.xlsx"), map[string][][]interface{}{
		"s": {{"v"}, {"first"}},
	})
	writeWorkbook(t, filepath.Join(root, "b", "Dup.xlsx"), map[string][][]interface{}{
		"s": {{"v"}, {"second"}},
	})

	src := NewXLSXDir(root)
	sheet, err := src.Lookup("Dup", "s")
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Cells[1][0] != "first" {
		t.Errorf("got %q, want the first match in walk order", sheet.Cells[1][0])
	}
	if sheet.FileMatches != 2 {
		t.Errorf("FileMatches = %d, want 2", sheet.FileMatches)
	}
}

func TestXLSXDirTables(t *testing.T) {
	root := t.TempDir()
	writeWorkbook(t, filepath.Join(root, "Sales.xlsx"), map[string][][]interface{}{
		"2023": {
			{"date", "amount"},
			{"2023-01-02", "1200"},
			{"2023-01-03", "800"},
		},
	})

	src := NewXLSXDir(root)
	tables, err := src.Tables()
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 1 {
		t.Fatalf("tables = %+v", tables)
	}
	d := tables[0]
	if d.File != "Sales" || d.Sheet != "2023" || d.Columns != 2 || d.Rows != 2 {
		t.Errorf("descriptor = %+v", d)
	}
}
