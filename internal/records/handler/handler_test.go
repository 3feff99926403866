package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akozlov/recordbook/internal/filestore"
	"github.com/akozlov/recordbook/internal/records"
)

// fakeRepo mirrors the Postgres repo's contracts in memory, including the
// run-removeFiles-before-delete behavior the handlers rely on.
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]records.Record

	failCreate bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{recs: map[int64]records.Record{}}
}

func (f *fakeRepo) GetRecords(ctx context.Context) ([]records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []records.Record{}
	for _, r := range f.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (f *fakeRepo) GetRecord(ctx context.Context, id int64) (*records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.recs[id]
	if !ok {
		return nil, records.ErrRecordNotFound
	}
	return &r, nil
}

func (f *fakeRepo) CreateRecord(ctx context.Context, params records.CreateRecordParams) (*records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate {
		return nil, context.DeadlineExceeded
	}

	f.nextID++
	rec := records.Record{
		ID:         f.nextID,
		SenderName: params.SenderName,
		SenderAge:  params.SenderAge,
		Message:    params.Message,
		FilePaths:  append(records.FilePaths{}, params.FilePaths...),
		CreatedAt:  time.Now().Add(time.Duration(f.nextID) * time.Millisecond),
	}
	f.recs[rec.ID] = rec
	return &rec, nil
}

func (f *fakeRepo) UpdateRecord(ctx context.Context, id int64, params records.UpdateRecordParams) (*records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if params.Empty() {
		return nil, records.ErrNothingToUpdate
	}

	rec, ok := f.recs[id]
	if !ok {
		return nil, records.ErrRecordNotFound
	}

	if params.SenderName != nil {
		rec.SenderName = *params.SenderName
	}
	if params.SenderAge != nil {
		rec.SenderAge = *params.SenderAge
	}
	if params.Message != nil {
		rec.Message = *params.Message
	}
	if len(params.NewFiles) > 0 {
		rec.FilePaths = append(rec.FilePaths, params.NewFiles...)
	}

	f.recs[id] = rec
	return &rec, nil
}

func (f *fakeRepo) RemoveFilePath(ctx context.Context, id int64, name string) (*records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.recs[id]
	if !ok {
		return nil, records.ErrRecordNotFound
	}
	if !rec.FilePaths.Contains(name) {
		return nil, records.ErrFileNotFound
	}

	rec.FilePaths = rec.FilePaths.Without(name)
	f.recs[id] = rec
	return &rec, nil
}

func (f *fakeRepo) DeleteRecord(ctx context.Context, id int64, removeFiles func(paths []string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.recs[id]
	if !ok {
		return records.ErrRecordNotFound
	}

	if removeFiles != nil {
		removeFiles(rec.FilePaths)
	}

	delete(f.recs, id)
	return nil
}

func (f *fakeRepo) DeleteRecords(ctx context.Context, ids []int64, removeFiles func(paths []string)) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deleted := []int64{}
	for _, id := range ids {
		rec, ok := f.recs[id]
		if !ok {
			continue
		}
		if removeFiles != nil {
			removeFiles(rec.FilePaths)
		}
		delete(f.recs, id)
		deleted = append(deleted, id)
	}

	if len(deleted) == 0 {
		return nil, records.ErrRecordsNotFound
	}
	return deleted, nil
}

type env struct {
	repo  *fakeRepo
	store filestore.Store
	dir   string
	srv   *httptest.Server
}

func newEnv(t *testing.T) *env {
	return newEnvWith(t, nil)
}

func newEnvWith(t *testing.T, wrap func(filestore.Store) filestore.Store) *env {
	t.Helper()

	dir := t.TempDir()
	local, err := filestore.NewLocal(dir)
	require.NoError(t, err)

	var store filestore.Store = local
	if wrap != nil {
		store = wrap(store)
	}

	repo := newFakeRepo()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(repo, store, nil, log, 5, 32<<20)

	router := chi.NewRouter()
	router.Route("/api/records", func(r chi.Router) {
		r.Get("/", h.GetRecords())
		r.Post("/", h.CreateRecord())
		r.Delete("/", h.DeleteRecords())
		r.Get("/{id}", h.GetRecord())
		r.Put("/{id}", h.UpdateRecord())
		r.Delete("/{id}", h.DeleteRecord())
		r.Delete("/{id}/files", h.DeleteRecordFile())
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{repo: repo, store: store, dir: dir, srv: srv}
}

type filePart struct {
	filename    string
	contentType string
	data        string
}

func multipartBody(t *testing.T, fields map[string]string, files []filePart) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	for _, fp := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="files"; filename="`+fp.filename+`"`)
		hdr.Set("Content-Type", fp.contentType)

		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte(fp.data))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func doMultipart(t *testing.T, e *env, method, url string, fields map[string]string, files []filePart) *http.Response {
	t.Helper()

	body, contentType := multipartBody(t, fields, files)
	req, err := http.NewRequest(method, e.srv.URL+url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, e *env, method, url string, payload any) *http.Response {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(method, e.srv.URL+url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeRecord(t *testing.T, resp *http.Response) records.Record {
	t.Helper()
	defer resp.Body.Close()

	var rec records.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	return rec
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func storedFiles(t *testing.T, e *env) []string {
	t.Helper()

	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)

	names := []string{}
	for _, en := range entries {
		names = append(names, en.Name())
	}
	return names
}

func baseFields() map[string]string {
	return map[string]string{
		"sender_name": "Alice",
		"sender_age":  "30",
		"message":     "hello",
	}
}

func TestCreateRecordWithUpload(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), []filePart{
		{filename: "photo.png", contentType: "image/png", data: "png-bytes"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rec := decodeRecord(t, resp)
	assert.Equal(t, "Alice", rec.SenderName)
	assert.Equal(t, 30, rec.SenderAge)
	assert.Equal(t, "hello", rec.Message)
	require.Len(t, rec.FilePaths, 1)
	assert.True(t, strings.HasSuffix(rec.FilePaths[0], ".png"))

	assert.Equal(t, []string{rec.FilePaths[0]}, storedFiles(t, e))
}

func TestCreateRecordNoFiles(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rec := decodeRecord(t, resp)
	assert.Equal(t, records.FilePaths{}, rec.FilePaths)
}

func TestCreateRecordMissingFields(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", map[string]string{
		"sender_name": "Alice",
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing_fields", decodeError(t, resp))
}

func TestCreateRecordUnsupportedTypeLeavesNoFiles(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), []filePart{
		{filename: "ok.png", contentType: "image/png", data: "x"},
		{filename: "bad.gif", contentType: "image/gif", data: "x"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported_file_type", decodeError(t, resp))

	// Validation happens before anything is persisted.
	assert.Empty(t, storedFiles(t, e))
	recs, err := e.repo.GetRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCreateRecordTooManyFiles(t *testing.T) {
	e := newEnv(t)

	files := make([]filePart, 6)
	for i := range files {
		files[i] = filePart{filename: "f.png", contentType: "image/png", data: "x"}
	}

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), files)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "too_many_files", decodeError(t, resp))
	assert.Empty(t, storedFiles(t, e))
}

func TestCreateRecordCleansUpOnRepoFailure(t *testing.T) {
	e := newEnv(t)
	e.repo.failCreate = true

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), []filePart{
		{filename: "photo.png", contentType: "image/png", data: "x"},
	})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	assert.Empty(t, storedFiles(t, e))
}

func TestGetRecordsNewestFirst(t *testing.T) {
	e := newEnv(t)

	for _, msg := range []string{"first", "second", "third"} {
		fields := baseFields()
		fields["message"] = msg
		resp := doMultipart(t, e, http.MethodPost, "/api/records", fields, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(e.srv.URL + "/api/records")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var recs []records.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 3)
	assert.Equal(t, "third", recs[0].Message)
	assert.Equal(t, "first", recs[2].Message)
}

func TestGetRecordNotFound(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.srv.URL + "/api/records/99")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "record_not_found", decodeError(t, resp))
}

func TestGetRecordUnparseableIDIsNotFound(t *testing.T) {
	e := newEnv(t)

	for _, id := range []string{"abc", "0", "-1"} {
		resp, err := http.Get(e.srv.URL + "/api/records/" + id)
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, id)
		assert.Equal(t, "record_not_found", decodeError(t, resp))
	}
}

func TestUpdateRecordAgeZeroIsApplied(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), nil)
	rec := decodeRecord(t, resp)

	resp = doMultipart(t, e, http.MethodPut, "/api/records/1", map[string]string{
		"sender_age": "0",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decodeRecord(t, resp)
	assert.Equal(t, 0, updated.SenderAge)
	assert.Equal(t, rec.SenderName, updated.SenderName)
}

func TestUpdateRecordAppendsFiles(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), []filePart{
		{filename: "a.png", contentType: "image/png", data: "x"},
	})
	rec := decodeRecord(t, resp)

	resp = doMultipart(t, e, http.MethodPut, "/api/records/1", nil, []filePart{
		{filename: "b.pdf", contentType: "application/pdf", data: "y"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decodeRecord(t, resp)
	require.Len(t, updated.FilePaths, 2)
	assert.Equal(t, rec.FilePaths[0], updated.FilePaths[0])
	assert.True(t, strings.HasSuffix(updated.FilePaths[1], ".pdf"))
	assert.Len(t, storedFiles(t, e), 2)
}

func TestUpdateRecordRejectsEmptyRequiredText(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), nil)
	resp.Body.Close()

	for _, fields := range []map[string]string{
		{"sender_name": ""},
		{"message": "   "},
	} {
		resp = doMultipart(t, e, http.MethodPut, "/api/records/1", fields, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "empty_field", decodeError(t, resp))
	}

	got, err := e.repo.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.SenderName)
	assert.Equal(t, "hello", got.Message)
}

func TestUpdateRecordNothingToUpdate(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), nil)
	resp.Body.Close()

	resp = doMultipart(t, e, http.MethodPut, "/api/records/1", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "nothing_to_update", decodeError(t, resp))
}

func TestUpdateRecordNotFoundCleansUpUploads(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPut, "/api/records/42", nil, []filePart{
		{filename: "a.png", contentType: "image/png", data: "x"},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "record_not_found", decodeError(t, resp))
	assert.Empty(t, storedFiles(t, e))
}

func TestDeleteRecordRemovesFiles(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), []filePart{
		{filename: "a.png", contentType: "image/png", data: "x"},
		{filename: "b.jpg", contentType: "image/jpeg", data: "y"},
	})
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, e.srv.URL+"/api/records/1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Empty(t, storedFiles(t, e))

	_, err = e.repo.GetRecord(context.Background(), 1)
	assert.ErrorIs(t, err, records.ErrRecordNotFound)
}

func TestDeleteRecordNotFound(t *testing.T) {
	e := newEnv(t)

	req, err := http.NewRequest(http.MethodDelete, e.srv.URL+"/api/records/7", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "record_not_found", decodeError(t, resp))
}

func TestDeleteRecordFile(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), []filePart{
		{filename: "a.png", contentType: "image/png", data: "x"},
	})
	rec := decodeRecord(t, resp)
	file := rec.FilePaths[0]

	resp = doJSON(t, e, http.MethodDelete, "/api/records/1/files", records.DeleteRecordFileRequest{File: file})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Empty(t, storedFiles(t, e))

	got, err := e.repo.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, records.FilePaths{}, got.FilePaths)
}

// brokenRemoveStore passes everything through but fails every Remove,
// standing in for a file the OS refuses to delete.
type brokenRemoveStore struct {
	filestore.Store
}

func (s brokenRemoveStore) Remove(ctx context.Context, name string) error {
	return errors.New("remove failed")
}

func TestDeleteRecordFileRemoveFailureLeavesRowUnchanged(t *testing.T) {
	e := newEnvWith(t, func(s filestore.Store) filestore.Store {
		return brokenRemoveStore{Store: s}
	})

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), []filePart{
		{filename: "a.png", contentType: "image/png", data: "x"},
	})
	rec := decodeRecord(t, resp)
	file := rec.FilePaths[0]

	resp = doJSON(t, e, http.MethodDelete, "/api/records/1/files", records.DeleteRecordFileRequest{File: file})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "file_delete_failed", decodeError(t, resp))

	// The physical delete failed, so the row keeps the filename and the
	// file is still served.
	got, err := e.repo.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, records.FilePaths{file}, got.FilePaths)
	assert.Equal(t, []string{file}, storedFiles(t, e))
}

func TestDeleteRecordFileNotInRecord(t *testing.T) {
	e := newEnv(t)

	resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), nil)
	resp.Body.Close()

	resp = doJSON(t, e, http.MethodDelete, "/api/records/1/files", records.DeleteRecordFileRequest{File: "nope.png"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "file_not_found", decodeError(t, resp))
}

func TestDeleteRecordsBulk(t *testing.T) {
	e := newEnv(t)

	for i := 0; i < 3; i++ {
		resp := doMultipart(t, e, http.MethodPost, "/api/records", baseFields(), []filePart{
			{filename: "a.png", contentType: "image/png", data: "x"},
		})
		resp.Body.Close()
	}

	resp := doJSON(t, e, http.MethodDelete, "/api/records", records.DeleteRecordsRequest{RecordIDs: []int64{1, 3}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var body records.DeleteRecordsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.ElementsMatch(t, []int64{1, 3}, body.RecordIDs)

	assert.Len(t, storedFiles(t, e), 1)

	_, err := e.repo.GetRecord(context.Background(), 2)
	assert.NoError(t, err)
}

func TestDeleteRecordsNoneFound(t *testing.T) {
	e := newEnv(t)

	resp := doJSON(t, e, http.MethodDelete, "/api/records", records.DeleteRecordsRequest{RecordIDs: []int64{8, 9}})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "records_not_found", decodeError(t, resp))
}
