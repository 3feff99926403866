package httpapi

import (
	"errors"
	"net/http"

	"github.com/akozlov/recordbook/internal/records"
	"github.com/akozlov/recordbook/internal/uploads"
)

func MapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, records.ErrRecordNotFound):
		return http.StatusNotFound, "record_not_found", err.Error()

	case errors.Is(err, records.ErrRecordsNotFound):
		return http.StatusNotFound, "records_not_found", err.Error()

	case errors.Is(err, records.ErrFileNotFound):
		return http.StatusNotFound, "file_not_found", err.Error()

	case errors.Is(err, records.ErrMissingFields):
		return http.StatusBadRequest, "missing_fields", err.Error()

	case errors.Is(err, records.ErrInvalidAge):
		return http.StatusBadRequest, "invalid_sender_age", err.Error()

	case errors.Is(err, records.ErrNothingToUpdate):
		return http.StatusBadRequest, "nothing_to_update", err.Error()

	case errors.Is(err, records.ErrEmptyField):
		return http.StatusBadRequest, "empty_field", err.Error()

	case errors.Is(err, uploads.ErrInvalidContentType):
		return http.StatusBadRequest, "unsupported_file_type", err.Error()

	case errors.Is(err, uploads.ErrTooManyFiles):
		return http.StatusBadRequest, "too_many_files", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
