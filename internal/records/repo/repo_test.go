package recordsrepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akozlov/recordbook/internal/records"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestUpdateSetAllFields(t *testing.T) {
	params := records.UpdateRecordParams{
		SenderName: strPtr("Alice"),
		SenderAge:  intPtr(30),
		Message:    strPtr("hello"),
		NewFiles:   []string{"a.png"},
	}
	merged := records.FilePaths{"old.png", "a.png"}

	fields, args := updateSet(params, merged)

	require.Equal(t, []string{
		"sender_name = $1",
		"sender_age = $2",
		"message = $3",
		"file_paths = $4",
	}, fields)
	require.Len(t, args, 4)
	assert.Equal(t, "Alice", args[0])
	assert.Equal(t, 30, args[1])
	assert.Equal(t, "hello", args[2])
	assert.Equal(t, merged, args[3])
}

func TestUpdateSetZeroAgeIsWritten(t *testing.T) {
	params := records.UpdateRecordParams{SenderAge: intPtr(0)}

	fields, args := updateSet(params, nil)

	require.Equal(t, []string{"sender_age = $1"}, fields)
	require.Equal(t, []any{0}, args)
}

func TestUpdateSetSkipsAbsentFields(t *testing.T) {
	params := records.UpdateRecordParams{Message: strPtr("")}

	fields, args := updateSet(params, nil)

	// An empty string is still a provided value.
	require.Equal(t, []string{"message = $1"}, fields)
	require.Equal(t, []any{""}, args)
}

func TestUpdateSetPlaceholderNumbering(t *testing.T) {
	params := records.UpdateRecordParams{
		SenderName: strPtr("Bob"),
		Message:    strPtr("hi"),
	}

	fields, _ := updateSet(params, nil)

	// Gaps from absent fields must not leave holes in the numbering.
	assert.Equal(t, []string{"sender_name = $1", "message = $2"}, fields)
}
