package api

import (
	"errors"
	"net/http"

	"sheetql/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var fileNotFound *domain.FileNotFoundError
	var sheetNotFound *domain.SheetNotFoundError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &fileNotFound), errors.As(err, &sheetNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
