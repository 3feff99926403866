package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/akozlov/recordbook/internal/events"
	"github.com/akozlov/recordbook/internal/events/hub"
	"github.com/akozlov/recordbook/internal/filestore"
	mwmetrics "github.com/akozlov/recordbook/internal/http-server/middleware/metrics"
	response "github.com/akozlov/recordbook/internal/lib"
	"github.com/akozlov/recordbook/internal/lib/logger/sl"
	"github.com/akozlov/recordbook/internal/records"
	"github.com/akozlov/recordbook/internal/transport/httpapi"
	"github.com/akozlov/recordbook/internal/uploads"
)

type Handler struct {
	repo          records.Repo
	store         filestore.Store
	hub           *hub.Hub
	log           *slog.Logger
	maxFiles      int
	maxUploadSize int64
}

func New(
	repo records.Repo,
	store filestore.Store,
	h *hub.Hub,
	log *slog.Logger,
	maxFiles int,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		repo:          repo,
		store:         store,
		hub:           h,
		log:           log,
		maxFiles:      maxFiles,
		maxUploadSize: maxUploadSize,
	}
}

func (h *Handler) GetRecords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.records.GetRecords"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		recs, err := h.repo.GetRecords(r.Context())
		if err != nil {
			log.Error("failed to get records", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, recs)
	}
}

func (h *Handler) GetRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.records.GetRecord"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := recordID(w, r)
		if !ok {
			return
		}

		rec, err := h.repo.GetRecord(r.Context(), id)
		if err != nil {
			log.Error("failed to get record", slog.Int64("id", id), sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, rec)
	}
}

func (h *Handler) CreateRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.records.CreateRecord"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			log.Warn("invalid multipart form", sl.Err(err))
			response.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid multipart form")
			return
		}

		senderName := strings.TrimSpace(r.FormValue("sender_name"))
		senderAgeStr := strings.TrimSpace(r.FormValue("sender_age"))
		message := strings.TrimSpace(r.FormValue("message"))

		if senderName == "" || senderAgeStr == "" || message == "" {
			httpapi.WriteError(w, r, records.ErrMissingFields)
			return
		}

		senderAge, err := strconv.Atoi(senderAgeStr)
		if err != nil {
			httpapi.WriteError(w, r, records.ErrInvalidAge)
			return
		}

		saved, err := h.saveUploads(r.Context(), log, r.MultipartForm)
		if err != nil {
			log.Warn("failed to accept uploads", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		rec, err := h.repo.CreateRecord(r.Context(), records.CreateRecordParams{
			SenderName: senderName,
			SenderAge:  senderAge,
			Message:    message,
			FilePaths:  saved,
		})
		if err != nil {
			log.Error("failed to create record", sl.Err(err))
			h.cleanup(r.Context(), log, saved)
			httpapi.WriteError(w, r, err)
			return
		}

		log.Info("record created", slog.Int64("id", rec.ID), slog.Int("files", len(rec.FilePaths)))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, rec)

		h.publish(log, events.NewRecordEvent(events.RecordCreated, rec))
	}
}

func (h *Handler) UpdateRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.records.UpdateRecord"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := recordID(w, r)
		if !ok {
			return
		}

		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			log.Warn("invalid multipart form", sl.Err(err))
			response.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid multipart form")
			return
		}

		params, err := updateParams(r.MultipartForm)
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		saved, err := h.saveUploads(r.Context(), log, r.MultipartForm)
		if err != nil {
			log.Warn("failed to accept uploads", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}
		params.NewFiles = saved

		if params.Empty() {
			httpapi.WriteError(w, r, records.ErrNothingToUpdate)
			return
		}

		rec, err := h.repo.UpdateRecord(r.Context(), id, params)
		if err != nil {
			log.Error("failed to update record", slog.Int64("id", id), sl.Err(err))
			h.cleanup(r.Context(), log, saved)
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, rec)

		h.publish(log, events.NewRecordEvent(events.RecordUpdated, rec))
	}
}

// DeleteRecordFile removes one filename from a record. The physical file is
// deleted first and the row updated only on success, so a failed unlink
// leaves the database and the file store consistent with each other.
func (h *Handler) DeleteRecordFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.records.DeleteRecordFile"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := recordID(w, r)
		if !ok {
			return
		}

		var req records.DeleteRecordFileRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("invalid body", sl.Err(err))
			response.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid body")
			return
		}

		if err := uploads.ValidateName(req.File); err != nil {
			httpapi.WriteError(w, r, records.ErrFileNotFound)
			return
		}

		rec, err := h.repo.GetRecord(r.Context(), id)
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		if !rec.FilePaths.Contains(req.File) {
			httpapi.WriteError(w, r, records.ErrFileNotFound)
			return
		}

		if err := h.store.Remove(r.Context(), req.File); err != nil {
			log.Error("failed to delete file", slog.String("file", req.File), sl.Err(err))
			mwmetrics.FileOperationsTotal.WithLabelValues("remove", "error").Inc()
			response.WriteError(w, r, http.StatusInternalServerError, "file_delete_failed", "failed to delete file from storage")
			return
		}
		mwmetrics.FileOperationsTotal.WithLabelValues("remove", "ok").Inc()

		updated, err := h.repo.RemoveFilePath(r.Context(), id, req.File)
		if err != nil {
			log.Error("failed to update file list", slog.Int64("id", id), sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		response.WriteMessage(w, r, "File deleted successfully")

		h.publish(log, events.NewRecordEvent(events.RecordFilesChanged, updated))
	}
}

func (h *Handler) DeleteRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.records.DeleteRecord"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := recordID(w, r)
		if !ok {
			return
		}

		err := h.repo.DeleteRecord(r.Context(), id, func(paths []string) {
			h.cleanup(r.Context(), log, paths)
		})
		if err != nil {
			log.Error("failed to delete record", slog.Int64("id", id), sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		log.Info("record deleted", slog.Int64("id", id))

		response.WriteMessage(w, r, "Record and associated files deleted successfully.")

		h.publish(log, events.NewDeletedEvent([]int64{id}))
	}
}

func (h *Handler) DeleteRecords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.records.DeleteRecords"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req records.DeleteRecordsRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("invalid body", sl.Err(err))
			response.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid body")
			return
		}

		deletedIDs, err := h.repo.DeleteRecords(r.Context(), req.RecordIDs, func(paths []string) {
			h.cleanup(r.Context(), log, paths)
		})
		if err != nil {
			log.Error("failed to delete records", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, records.DeleteRecordsResponse{RecordIDs: deletedIDs})

		h.publish(log, events.NewDeletedEvent(deletedIDs))
	}
}

// saveUploads validates every declared content type before a single byte is
// persisted, then writes the files one by one. If a later write fails,
// everything already written in this request is removed again.
func (h *Handler) saveUploads(ctx context.Context, log *slog.Logger, form *multipart.Form) ([]string, error) {
	if form == nil {
		return []string{}, nil
	}

	files := form.File["files"]
	if len(files) == 0 {
		return []string{}, nil
	}
	if len(files) > h.maxFiles {
		return nil, uploads.ErrTooManyFiles
	}

	for _, fh := range files {
		if !uploads.IsValidContentType(fh.Header.Get("Content-Type")) {
			return nil, uploads.ErrInvalidContentType
		}
	}

	saved := make([]string, 0, len(files))

	for _, fh := range files {
		contentType := fh.Header.Get("Content-Type")

		name, err := uploads.GenerateName(contentType)
		if err != nil {
			h.cleanup(ctx, log, saved)
			return nil, err
		}

		f, err := fh.Open()
		if err != nil {
			h.cleanup(ctx, log, saved)
			return nil, err
		}

		err = h.store.Save(ctx, name, contentType, f)
		f.Close()
		if err != nil {
			mwmetrics.FileOperationsTotal.WithLabelValues("save", "error").Inc()
			h.cleanup(ctx, log, saved)
			return nil, err
		}
		mwmetrics.FileOperationsTotal.WithLabelValues("save", "ok").Inc()

		saved = append(saved, name)
	}

	return saved, nil
}

// cleanup releases files written earlier in a failed request. Best-effort:
// individual failures are logged inside RemoveAll and never override the
// error already being reported.
func (h *Handler) cleanup(ctx context.Context, log *slog.Logger, names []string) {
	if len(names) == 0 {
		return
	}
	_ = filestore.RemoveAll(ctx, h.store, log, names)
}

func (h *Handler) publish(log *slog.Logger, evt events.Event) {
	if h.hub == nil {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		log.Error("failed to marshal event", sl.Err(err))
		return
	}

	h.hub.Broadcast(payload)
}

// updateParams reads field presence from the raw multipart form, so a
// supplied sender_age of 0 (or any empty-looking value the client insists
// on) is treated as provided rather than silently skipped.
func updateParams(form *multipart.Form) (records.UpdateRecordParams, error) {
	var params records.UpdateRecordParams
	if form == nil {
		return params, nil
	}

	if vals, ok := form.Value["sender_name"]; ok && len(vals) > 0 {
		v := strings.TrimSpace(vals[0])
		if v == "" {
			return params, records.ErrEmptyField
		}
		params.SenderName = &v
	}

	if vals, ok := form.Value["sender_age"]; ok && len(vals) > 0 {
		age, err := strconv.Atoi(strings.TrimSpace(vals[0]))
		if err != nil {
			return params, records.ErrInvalidAge
		}
		params.SenderAge = &age
	}

	if vals, ok := form.Value["message"]; ok && len(vals) > 0 {
		v := strings.TrimSpace(vals[0])
		if v == "" {
			return params, records.ErrEmptyField
		}
		params.Message = &v
	}

	return params, nil
}

// recordID parses the id path segment. Ids that cannot name an existing
// row (non-numeric, non-positive) are reported as not found, matching the
// outcome a lookup for them would have.
func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		httpapi.WriteError(w, r, records.ErrRecordNotFound)
		return 0, false
	}
	return id, true
}
