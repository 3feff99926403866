package records

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Record struct {
	ID         int64     `json:"id" db:"id"`
	SenderName string    `json:"sender_name" db:"sender_name"`
	SenderAge  int       `json:"sender_age" db:"sender_age"`
	Message    string    `json:"message" db:"message"`
	FilePaths  FilePaths `json:"file_paths" db:"file_paths"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// FilePaths is the ordered list of generated upload names owned by a record,
// persisted as a JSONB-encoded array in the file_paths column.
type FilePaths []string

func (f FilePaths) Value() (driver.Value, error) {
	if f == nil {
		f = FilePaths{}
	}
	return json.Marshal(f)
}

func (f *FilePaths) Scan(src any) error {
	if src == nil {
		*f = FilePaths{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("file_paths: cannot scan %T", src)
	}

	if len(data) == 0 {
		*f = FilePaths{}
		return nil
	}

	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("file_paths: %w", err)
	}

	if *f == nil {
		*f = FilePaths{}
	}

	return nil
}

func (f FilePaths) Contains(name string) bool {
	for _, p := range f {
		if p == name {
			return true
		}
	}
	return false
}

func (f FilePaths) Without(name string) FilePaths {
	result := FilePaths{}
	for _, p := range f {
		if p != name {
			result = append(result, p)
		}
	}
	return result
}

type CreateRecordParams struct {
	SenderName string
	SenderAge  int
	Message    string
	FilePaths  []string
}

// UpdateRecordParams carries only the fields the caller actually supplied.
// nil means "not provided", so a provided sender_age of 0 survives intact.
type UpdateRecordParams struct {
	SenderName *string
	SenderAge  *int
	Message    *string
	NewFiles   []string
}

func (p UpdateRecordParams) Empty() bool {
	return p.SenderName == nil && p.SenderAge == nil && p.Message == nil && len(p.NewFiles) == 0
}

type DeleteRecordFileRequest struct {
	File string `json:"file"`
}

type DeleteRecordsRequest struct {
	RecordIDs []int64 `json:"record_ids"`
}

type DeleteRecordsResponse struct {
	RecordIDs []int64 `json:"record_ids"`
}

type Repo interface {
	GetRecords(ctx context.Context) ([]Record, error)
	GetRecord(ctx context.Context, id int64) (*Record, error)
	CreateRecord(ctx context.Context, params CreateRecordParams) (*Record, error)
	UpdateRecord(ctx context.Context, id int64, params UpdateRecordParams) (*Record, error)
	RemoveFilePath(ctx context.Context, id int64, name string) (*Record, error)
	DeleteRecord(ctx context.Context, id int64, removeFiles func(paths []string)) error
	DeleteRecords(ctx context.Context, ids []int64, removeFiles func(paths []string)) ([]int64, error)
}
