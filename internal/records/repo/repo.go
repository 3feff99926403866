package recordsrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/akozlov/recordbook/internal/records"
)

const recordColumns = "id, sender_name, sender_age, message, file_paths, created_at"

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

func (s *Repo) GetRecords(ctx context.Context) ([]records.Record, error) {
	const op = "records.repo.GetRecords"

	recs := []records.Record{}
	err := s.db.SelectContext(
		ctx,
		&recs,
		`SELECT `+recordColumns+`
		FROM records
		ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	return recs, nil
}

func (s *Repo) GetRecord(ctx context.Context, id int64) (*records.Record, error) {
	const op = "records.repo.GetRecord"

	var rec records.Record
	err := s.db.GetContext(
		ctx,
		&rec,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get: %w", op, err)
	}

	return &rec, nil
}

func (s *Repo) CreateRecord(ctx context.Context, params records.CreateRecordParams) (*records.Record, error) {
	const op = "records.repo.CreateRecord"

	var rec records.Record
	err := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO records (sender_name, sender_age, message, file_paths)
		VALUES ($1, $2, $3, $4)
		RETURNING `+recordColumns,
		params.SenderName, params.SenderAge, params.Message, records.FilePaths(params.FilePaths),
	).StructScan(&rec)

	if err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	return &rec, nil
}

func (s *Repo) UpdateRecord(ctx context.Context, id int64, params records.UpdateRecordParams) (*records.Record, error) {
	const op = "records.repo.UpdateRecord"

	if params.Empty() {
		return nil, records.ErrNothingToUpdate
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	var existing records.FilePaths
	err = tx.GetContext(ctx, &existing, `SELECT file_paths FROM records WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: select file_paths: %w", op, err)
	}

	var merged records.FilePaths
	if len(params.NewFiles) > 0 {
		merged = append(existing, params.NewFiles...)
	}

	fields, args := updateSet(params, merged)

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE records SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(fields, ", "), len(args), recordColumns,
	)

	var rec records.Record
	if err := tx.QueryRowxContext(ctx, query, args...).StructScan(&rec); err != nil {
		return nil, fmt.Errorf("%s: update: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return &rec, nil
}

// updateSet assembles the SET list from the fields the caller supplied.
// Presence is carried by pointers, so a provided zero value is still written.
func updateSet(params records.UpdateRecordParams, merged records.FilePaths) ([]string, []any) {
	fields := []string{}
	args := []any{}

	add := func(column string, value any) {
		fields = append(fields, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if params.SenderName != nil {
		add("sender_name", *params.SenderName)
	}
	if params.SenderAge != nil {
		add("sender_age", *params.SenderAge)
	}
	if params.Message != nil {
		add("message", *params.Message)
	}
	if len(params.NewFiles) > 0 {
		add("file_paths", merged)
	}

	return fields, args
}

func (s *Repo) RemoveFilePath(ctx context.Context, id int64, name string) (*records.Record, error) {
	const op = "records.repo.RemoveFilePath"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	var existing records.FilePaths
	err = tx.GetContext(ctx, &existing, `SELECT file_paths FROM records WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: select file_paths: %w", op, err)
	}

	if !existing.Contains(name) {
		return nil, records.ErrFileNotFound
	}

	var rec records.Record
	err = tx.QueryRowxContext(
		ctx,
		`UPDATE records SET file_paths = $1 WHERE id = $2 RETURNING `+recordColumns,
		existing.Without(name), id,
	).StructScan(&rec)
	if err != nil {
		return nil, fmt.Errorf("%s: update: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return &rec, nil
}

// DeleteRecord wraps the row lookup and row delete in one transaction.
// removeFiles runs between the two with the record's file list; whatever it
// deletes from disk stays deleted even if the transaction rolls back.
func (s *Repo) DeleteRecord(ctx context.Context, id int64, removeFiles func(paths []string)) error {
	const op = "records.repo.DeleteRecord"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	var paths records.FilePaths
	err = tx.GetContext(ctx, &paths, `SELECT file_paths FROM records WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: select file_paths: %w", op, err)
	}

	if removeFiles != nil {
		removeFiles(paths)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: delete: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return nil
}

func (s *Repo) DeleteRecords(ctx context.Context, ids []int64, removeFiles func(paths []string)) ([]int64, error) {
	const op = "records.repo.DeleteRecords"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	type row struct {
		ID        int64             `db:"id"`
		FilePaths records.FilePaths `db:"file_paths"`
	}

	var rows []row
	err = tx.SelectContext(
		ctx,
		&rows,
		`SELECT id, file_paths FROM records WHERE id = ANY($1) FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	if len(rows) == 0 {
		return nil, records.ErrRecordsNotFound
	}

	if removeFiles != nil {
		for _, r := range rows {
			removeFiles(r.FilePaths)
		}
	}

	deletedIDs := []int64{}
	err = tx.SelectContext(
		ctx,
		&deletedIDs,
		`DELETE FROM records WHERE id = ANY($1) RETURNING id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: delete: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return deletedIDs, nil
}
