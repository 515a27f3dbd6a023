package domain

// Row maps column names to cell values. Values are taken verbatim from the
// sheet except that string cells beginning with '[' or '{' are speculatively
// parsed as JSON at load time (the raw string is kept on parse failure).
type Row map[string]interface{}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// TableReference identifies a spreadsheet table by its composite
// "file.sheet" key as it appeared in the query text.
type TableReference struct {
	RawText   string
	FileName  string
	SheetName string
	Alias     string // empty when the query gave none
}

// Key returns the composite file.sheet identity of the reference.
func (r TableReference) Key() string { return r.FileName + "." + r.SheetName }

// Sheet is the raw used range of one sheet: a header row followed by data
// rows. FileMatches reports how many accessible files matched the lookup
// name; the first match wins when it is greater than one.
type Sheet struct {
	File        string
	Name        string
	Cells       [][]string
	FileMatches int
}

// TableDescriptor describes one queryable sheet exposed by a data source.
type TableDescriptor struct {
	File    string `json:"file"`
	Sheet   string `json:"sheet"`
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
}

// DataSource is the host collaborator that provides spreadsheet data.
// Lookup matches the file by name (first match wins on duplicates) and the
// sheet by exact, case-sensitive name. It returns *FileNotFoundError or
// *SheetNotFoundError accordingly.
type DataSource interface {
	Lookup(fileName, sheetName string) (*Sheet, error)
	Tables() ([]TableDescriptor, error)
}
