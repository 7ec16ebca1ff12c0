// Package rest exposes the laboratory service as a REST api under /api,
// with ETag based optimistic concurrency on updates.
package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/acme-health/labor/kss"
	"github.com/acme-health/labor/labor/service"
)

const apiPath = "/api"

// API is the REST surface of the laboratory service.
type API struct {
	service *service.Service
	files   kss.Driver
}

// New creates the API and registers all routes with the router. The file
// driver may be nil, the file routes then answer 501.
func New(router *mux.Router, svc *service.Service, files kss.Driver) *API {
	a := &API{service: svc, files: files}

	uuidPattern := "{id:[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}}"

	router.HandleFunc(apiPath, a.find).Methods(http.MethodGet)
	router.HandleFunc(apiPath, a.create).Methods(http.MethodPost)
	router.HandleFunc(apiPath+"/name/{prefix}", a.namesByPrefix).Methods(http.MethodGet)
	router.HandleFunc(apiPath+"/version/"+uuidPattern, a.versionByID).Methods(http.MethodGet)
	router.HandleFunc(apiPath+"/auth/rollen", a.roles).Methods(http.MethodGet)
	router.HandleFunc(apiPath+"/"+uuidPattern, a.findByID).Methods(http.MethodGet)
	router.HandleFunc(apiPath+"/"+uuidPattern, a.update).Methods(http.MethodPut)
	router.HandleFunc(apiPath+"/"+uuidPattern, a.patch).Methods(http.MethodPatch)
	router.HandleFunc(apiPath+"/"+uuidPattern, a.deleteByID).Methods(http.MethodDelete)
	router.HandleFunc(apiPath+"/"+uuidPattern+"/file", a.uploadFile).Methods(http.MethodPut)
	router.HandleFunc(apiPath+"/"+uuidPattern+"/file", a.downloadFile).Methods(http.MethodGet)

	return a
}
