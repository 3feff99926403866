package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/akozlov/recordbook/internal/filestore"
	response "github.com/akozlov/recordbook/internal/lib"
	"github.com/akozlov/recordbook/internal/lib/logger/sl"
	"github.com/akozlov/recordbook/internal/uploads"
)

type Handler struct {
	store filestore.Store
	log   *slog.Logger
}

func New(store filestore.Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Serve streams a stored file back to the client. Names that fail
// validation are reported as not found rather than rejected separately,
// so the handler leaks nothing about the layout of the store.
func (h *Handler) Serve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.Serve"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		name := chi.URLParam(r, "filename")
		if err := uploads.ValidateName(name); err != nil {
			response.WriteError(w, r, http.StatusNotFound, "file_not_found", "file not found")
			return
		}

		body, size, err := h.store.Open(r.Context(), name)
		if err != nil {
			if errors.Is(err, filestore.ErrFileNotExist) {
				response.WriteError(w, r, http.StatusNotFound, "file_not_found", "file not found")
				return
			}
			log.Error("failed to open file", slog.String("file", name), sl.Err(err))
			response.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		defer body.Close()

		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		if size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		}

		if _, err := io.Copy(w, body); err != nil {
			log.Warn("failed to stream file", slog.String("file", name), sl.Err(err))
		}
	}
}
