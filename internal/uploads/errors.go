package uploads

import (
	"errors"
)

var (
	ErrInvalidContentType = errors.New("unsupported file type")
	ErrTooManyFiles       = errors.New("too many files")
	ErrInvalidFilename    = errors.New("invalid filename")
)
