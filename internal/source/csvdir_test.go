package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sheetql/internal/domain"
)

func writeCSV(t *testing.T, root, file, sheet, content string) {
	t.Helper()
	dir := filepath.Join(root, file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, sheet+".csv"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCSVDirLookup(t *testing.T) {
	root := t.TempDir()
	writeCSV(t, root, "Sales", "2023", "date,amount\n2023-01-02,1200\n2023-01-03,800\n")

	src := NewCSVDir(root)
	sheet, err := src.Lookup("Sales", "2023")
	if err != nil {
		t.Fatal(err)
	}
	if len(sheet.Cells) != 3 {
		t.Fatalf("cells = %d rows, want 3", len(sheet.Cells))
	}
	if sheet.Cells[0][0] != "date" || sheet.Cells[1][1] != "1200" {
		t.Errorf("cells = %v", sheet.Cells)
	}
	if sheet.FileMatches != 1 {
		t.Errorf("FileMatches = %d", sheet.FileMatches)
	}
}

func TestCSVDirMissingFile(t *testing.T) {
	src := NewCSVDir(t.TempDir())
	_, err := src.Lookup("Nope", "s")
	var notFound *domain.FileNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want FileNotFoundError", err)
	}
}

func TestCSVDirMissingSheet(t *testing.T) {
	root := t.TempDir()
	writeCSV(t, root, "Sales", "2023", "a\n1\n")
	src := NewCSVDir(root)
	_, err := src.Lookup("Sales", "2024")
	var notFound *domain.SheetNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want SheetNotFoundError", err)
	}
}

func TestCSVDirRaggedRows(t *testing.T) {
	root := t.TempDir()
	writeCSV(t, root, "f", "s", "a,b,c\n1\n1,2,3,4\n")
	src := NewCSVDir(root)
	sheet, err := src.Lookup("f", "s")
	if err != nil {
		t.Fatalf("ragged rows must be readable: %v", err)
	}
	if len(sheet.Cells[1]) != 1 || len(sheet.Cells[2]) != 4 {
		t.Errorf("cells = %v", sheet.Cells)
	}
}

func TestCSVDirTables(t *testing.T) {
	root := t.TempDir()
	writeCSV(t, root, "Sales", "2023", "a,b\n1,2\n3,4\n")
	writeCSV(t, root, "Sales", "2024", "a\n")
	writeCSV(t, root, "Orders", "Data", "id\n1\n")
	// Stray files at the root and non-csv files are ignored.
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Sales", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewCSVDir(root)
	tables, err := src.Tables()
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 3 {
		t.Fatalf("tables = %d, want 3: %+v", len(tables), tables)
	}
	byKey := map[string]domain.TableDescriptor{}
	for _, d := range tables {
		byKey[d.File+"."+d.Sheet] = d
	}
	if d := byKey["Sales.2023"]; d.Columns != 2 || d.Rows != 2 {
		t.Errorf("Sales.2023 = %+v", d)
	}
	if d := byKey["Sales.2024"]; d.Columns != 1 || d.Rows != 0 {
		t.Errorf("Sales.2024 = %+v", d)
	}
	if _, ok := byKey["Orders.Data"]; !ok {
		t.Error("Orders.Data missing")
	}
}
