package rest

import (
	"net/http"

	"github.com/acme-health/labor/labor"
)

type link struct {
	Href string `json:"href"`
}

// laborModel is a laboratory with its HAL links. The id travels in the
// self link, the version in the ETag header.
type laborModel struct {
	labor.Labor
	Links map[string]link `json:"_links"`
}

type laborCollectionModel struct {
	Embedded struct {
		Labore []laborModel `json:"labore"`
	} `json:"_embedded"`
}

func (a *API) toModel(r *http.Request, l *labor.Labor) laborModel {
	self := baseURL(r) + apiPath + "/" + l.ID.String()
	list := baseURL(r) + apiPath
	return laborModel{
		Labor: *l,
		Links: map[string]link{
			"self":   {Href: self},
			"list":   {Href: list},
			"add":    {Href: list},
			"update": {Href: self},
			"remove": {Href: self},
		},
	}
}

func (a *API) toCollectionModel(r *http.Request, labore []labor.Labor) laborCollectionModel {
	var collection laborCollectionModel
	collection.Embedded.Labore = make([]laborModel, 0, len(labore))
	for i := range labore {
		self := baseURL(r) + apiPath + "/" + labore[i].ID.String()
		collection.Embedded.Labore = append(collection.Embedded.Labore, laborModel{
			Labor: labore[i],
			Links: map[string]link{"self": {Href: self}},
		})
	}
	return collection
}

// baseURL reconstructs the external base URL of the request, honoring
// forwarding proxy headers.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = forwarded
	}
	return scheme + "://" + host
}
