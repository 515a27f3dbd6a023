// Package domain defines core types, interfaces, and errors shared by the
// query, rules, and API layers.
package domain

import "fmt"

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// FileNotFoundError reports that no spreadsheet file with the given name is
// visible to the data source. A query referencing the file aborts.
type FileNotFoundError struct {
	File string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("spreadsheet file %q not found", e.File)
}

// SheetNotFoundError reports a missing sheet inside an existing file. Callers
// degrade this to an empty relation instead of aborting, so joins against a
// renamed tab still run.
type SheetNotFoundError struct {
	File  string
	Sheet string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("sheet %q not found in file %q", e.Sheet, e.File)
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
