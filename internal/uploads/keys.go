package uploads

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateName builds the storage name for an accepted upload:
// <unix-millis>-<uuidv7><ext>. The name is fully server-generated so entries
// recorded on a record can never carry path components from the client.
func GenerateName(contentType string) (string, error) {
	ext, ok := ExtForMime(contentType)
	if !ok {
		return "", ErrInvalidContentType
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), u.String(), ext), nil
}

// ValidateName rejects anything that is not a bare generated filename.
// Guards the serve and delete paths against traversal.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return ErrInvalidFilename
	}
	if path.Base(name) != name {
		return ErrInvalidFilename
	}
	return nil
}
