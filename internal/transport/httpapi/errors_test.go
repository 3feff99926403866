package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akozlov/recordbook/internal/records"
	"github.com/akozlov/recordbook/internal/uploads"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{records.ErrRecordNotFound, http.StatusNotFound, "record_not_found"},
		{records.ErrRecordsNotFound, http.StatusNotFound, "records_not_found"},
		{records.ErrFileNotFound, http.StatusNotFound, "file_not_found"},
		{records.ErrMissingFields, http.StatusBadRequest, "missing_fields"},
		{records.ErrInvalidAge, http.StatusBadRequest, "invalid_sender_age"},
		{records.ErrNothingToUpdate, http.StatusBadRequest, "nothing_to_update"},
		{records.ErrEmptyField, http.StatusBadRequest, "empty_field"},
		{uploads.ErrInvalidContentType, http.StatusBadRequest, "unsupported_file_type"},
		{uploads.ErrTooManyFiles, http.StatusBadRequest, "too_many_files"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		status, code, _ := MapError(tc.err)
		assert.Equal(t, tc.wantStatus, status, tc.wantCode)
		assert.Equal(t, tc.wantCode, code)
	}
}

func TestMapErrorUnwrapsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("records.repo.GetRecord: %w", records.ErrRecordNotFound)

	status, code, _ := MapError(wrapped)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "record_not_found", code)
}

func TestMapErrorHidesInternalDetails(t *testing.T) {
	_, _, msg := MapError(errors.New("pq: connection refused"))
	assert.Equal(t, "internal server error", msg)
}
