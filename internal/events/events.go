package events

import (
	"github.com/akozlov/recordbook/internal/records"
)

const (
	RecordCreated      = "record.created"
	RecordUpdated      = "record.updated"
	RecordDeleted      = "record.deleted"
	RecordFilesChanged = "record.files_changed"
)

// Event is what subscribers of the live feed receive after a successful
// mutation. Record is set for create/update/files-changed, RecordIDs for
// deletes.
type Event struct {
	Type      string          `json:"type"`
	Record    *records.Record `json:"record,omitempty"`
	RecordIDs []int64         `json:"record_ids,omitempty"`
}

func NewRecordEvent(eventType string, rec *records.Record) Event {
	return Event{Type: eventType, Record: rec}
}

func NewDeletedEvent(ids []int64) Event {
	return Event{Type: RecordDeleted, RecordIDs: ids}
}
