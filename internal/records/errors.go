package records

import (
	"errors"
)

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrRecordsNotFound = errors.New("records not found")
	ErrFileNotFound    = errors.New("file not found in record")
	ErrMissingFields   = errors.New("sender's name, age, and message are required")
	ErrInvalidAge      = errors.New("sender_age must be an integer")
	ErrEmptyField      = errors.New("sender_name and message must be non-empty")
	ErrNothingToUpdate = errors.New("at least one field or file is required")
)
