package rest

import (
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/acme-health/labor/core/logger"
	"github.com/acme-health/labor/kss"
)

// uploadFile stores a binary file for the laboratory, the laboratory id is
// the storage key. A previous file is replaced.
func (a *API) uploadFile(w http.ResponseWriter, r *http.Request) {
	if a.files == nil {
		http.Error(w, "file storage not configured", http.StatusNotImplemented)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		http.Error(w, "Content-Type fehlt", http.StatusBadRequest)
		return
	}

	exists, err := a.service.Exists(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	key := id.String()
	if err := a.files.DeleteAll(key); err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 2401: cannot replace file")
		http.Error(w, "Error 2401", http.StatusInternalServerError)
		return
	}
	if err := a.files.Store(key, contentType, r.Body); err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 2402: cannot store file")
		http.Error(w, "Error 2402", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// downloadFile streams the stored binary file with its content type.
func (a *API) downloadFile(w http.ResponseWriter, r *http.Request) {
	if a.files == nil {
		http.Error(w, "file storage not configured", http.StatusNotImplemented)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	content, meta, err := a.files.Fetch(id.String())
	if err == kss.ErrNotFound {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 2403: cannot fetch file")
		http.Error(w, "Error 2403", http.StatusInternalServerError)
		return
	}
	defer content.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	io.Copy(w, content)
}
