package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/acme-health/labor/core/access"
	"github.com/acme-health/labor/core/logger"
	"github.com/acme-health/labor/directory"
	"github.com/acme-health/labor/labor"
	"github.com/acme-health/labor/labor/service"
	"github.com/acme-health/labor/labor/store"
)

// request bodies are small JSON documents
const maxBodySize = 1 << 20

func (a *API) findByID(w http.ResponseWriter, r *http.Request) {
	auth := access.AuthorizationFromContext(r.Context())
	if auth == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	l, err := a.service.FindByID(r.Context(), id, auth.Username)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	etag := etagFor(l.Version)
	w.Header().Set("Etag", etag)
	if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, a.toModel(r, l))
}

func (a *API) find(w http.ResponseWriter, r *http.Request) {
	labore, err := a.service.Find(r.Context(), r.URL.Query())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if len(labore) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a.toCollectionModel(r, labore))
}

func (a *API) create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "cannot read request body", http.StatusBadRequest)
		return
	}
	var l labor.Labor
	if err := decodeLabor(body, &l); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := a.service.Create(r.Context(), l)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", baseURL(r)+apiPath+"/"+created.ID.String())
	w.WriteHeader(http.StatusCreated)
}

func (a *API) update(w http.ResponseWriter, r *http.Request) {
	version, ok := versionFromPreconditions(w, r)
	if !ok {
		return
	}
	auth := access.AuthorizationFromContext(r.Context())
	if auth == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "cannot read request body", http.StatusBadRequest)
		return
	}
	var l labor.Labor
	if err := decodeLabor(body, &l); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := a.service.Update(r.Context(), l, id, version, auth.Username)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Etag", etagFor(updated.Version))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) patch(w http.ResponseWriter, r *http.Request) {
	version, ok := versionFromPreconditions(w, r)
	if !ok {
		return
	}
	auth := access.AuthorizationFromContext(r.Context())
	if auth == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var operations []labor.PatchOperation
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := decoder.Decode(&operations); err != nil {
		http.Error(w, "invalid patch document", http.StatusBadRequest)
		return
	}

	patched, err := a.service.Patch(r.Context(), id, version, operations, auth.Username)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Etag", etagFor(patched.Version))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteByID(w http.ResponseWriter, r *http.Request) {
	auth := access.AuthorizationFromContext(r.Context())
	if auth == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !auth.HasRole(directory.RoleAdmin) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if _, err := a.service.DeleteByID(r.Context(), id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) namesByPrefix(w http.ResponseWriter, r *http.Request) {
	names, err := a.service.NamesByPrefix(r.Context(), mux.Vars(r)["prefix"])
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (a *API) versionByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	version, err := a.service.VersionByID(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(strconv.Itoa(version)))
}

func (a *API) roles(w http.ResponseWriter, r *http.Request) {
	auth := access.AuthorizationFromContext(r.Context())
	if auth == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	roles, err := a.service.Roles(r.Context(), auth.Username)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// versionFromPreconditions enforces the If-Match protocol for writes: a
// missing header is answered with 428, a tag too short to carry a quoted
// number with 412. On success it returns the version string without the
// surrounding quotes.
func versionFromPreconditions(w http.ResponseWriter, r *http.Request) (string, bool) {
	values, ok := r.Header["If-Match"]
	if !ok || len(values) == 0 {
		http.Error(w, "Versionsnummer fehlt", http.StatusPreconditionRequired)
		return "", false
	}
	version := values[0]
	if len(version) < 3 {
		http.Error(w, "Falsche Versionsnummer "+version, http.StatusPreconditionFailed)
		return "", false
	}
	return version[1 : len(version)-1], true
}

func etagFor(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}

// ifNoneMatchFound checks whether the etag is contained in the If-None-Match
// header. The header may carry a comma-separated list or the wildcard.
func ifNoneMatchFound(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, token := range strings.Split(header, ",") {
		token = strings.TrimSpace(token)
		if token == "*" || token == etag {
			return true
		}
	}
	return false
}

func decodeLabor(body []byte, l *labor.Labor) error {
	if err := validateLaborDocument(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, l); err != nil {
		return errors.New("invalid labor document")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Error 2302", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ValidationError
	var usernameErr *service.UsernameExistsError
	var notFoundErr *service.NotFoundError
	var forbiddenErr *service.AccessForbiddenError
	var versionInvalidErr *service.VersionInvalidError
	var versionOutdatedErr *service.VersionOutdatedError

	switch {
	case errors.As(err, &validationErr):
		violations := make(map[string]string, len(validationErr.Violations))
		for _, violation := range validationErr.Violations {
			violations[violation.Key] = violation.Message
		}
		writeJSON(w, http.StatusBadRequest, violations)
	case errors.Is(err, service.ErrInvalidAccount):
		http.Error(w, "Ungueltiger Account", http.StatusBadRequest)
	case errors.As(err, &usernameErr):
		http.Error(w, fmt.Sprintf("Der Username %s existiert bereits", usernameErr.Username), http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		w.WriteHeader(http.StatusNotFound)
	case errors.As(err, &forbiddenErr):
		w.WriteHeader(http.StatusForbidden)
	case errors.As(err, &versionInvalidErr):
		http.Error(w, "Falsche Versionsnummer "+versionInvalidErr.Raw, http.StatusPreconditionFailed)
	case errors.As(err, &versionOutdatedErr):
		http.Error(w, fmt.Sprintf("Falsche Versionsnummer %d", versionOutdatedErr.Version), http.StatusPreconditionFailed)
	case errors.Is(err, store.ErrTimeout):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
	default:
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 2301: internal error")
		http.Error(w, "Error 2301", http.StatusInternalServerError)
	}
}
