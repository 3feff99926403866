package filestore

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/akozlov/recordbook/internal/lib/logger/sl"
)

var ErrFileNotExist = errors.New("file does not exist")

// Store is the durable home of uploaded binaries, addressed by generated
// names. Save must not leave partial content behind on failure.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, name string) error
}

// RemoveAll deletes every named file, continuing past individual failures.
// Used on cleanup-on-error paths and record deletion, where a single stuck
// file must not abort the rest.
func RemoveAll(ctx context.Context, store Store, log *slog.Logger, names []string) error {
	var result *multierror.Error

	for _, name := range names {
		if err := store.Remove(ctx, name); err != nil {
			log.Error("failed to remove file", slog.String("file", name), sl.Err(err))
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
