package client_test

import (
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/acme-health/labor/core/access"
	"github.com/acme-health/labor/core/client"
)

func testRouter() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		auth := access.AuthorizationFromContext(r.Context())
		username := ""
		if auth != nil {
			username = auth.Username
		}
		data, _ := json.Marshal(map[string]string{
			"username": username,
			"header":   r.Header.Get("X-Extra"),
		})
		w.Write(data)
	}).Methods(http.MethodGet)
	router.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		data, _ := json.Marshal(body)
		w.Write(data)
	}).Methods(http.MethodPost)
	router.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such thing", http.StatusNotFound)
	}).Methods(http.MethodGet)
	return router
}

func TestClientAuthorization(t *testing.T) {
	cl := client.NewWithRouter(testRouter()).WithRole("marie", "labor")

	var result map[string]string
	status, err := cl.RawGet("/echo", &result)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusOK {
		t.Fatalf("Expecting %v got '%v'", http.StatusOK, status)
	}
	if result["username"] != "marie" {
		t.Fatalf("Expecting %v got '%v'", "marie", result["username"])
	}
}

func TestClientDefaultHeaders(t *testing.T) {
	cl := client.NewWithRouter(testRouter()).WithHeader("X-Extra", "42")

	var result map[string]string
	if _, err := cl.RawGet("/echo", &result); err != nil {
		t.Fatal(err)
	}
	if result["header"] != "42" {
		t.Fatalf("Expecting %v got '%v'", "42", result["header"])
	}
}

func TestClientPostRoundtrip(t *testing.T) {
	cl := client.NewWithRouter(testRouter())

	var result map[string]string
	status, err := cl.RawPost("/echo", map[string]string{"name": "Labor Nord"}, &result)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusCreated {
		t.Fatalf("Expecting %v got '%v'", http.StatusCreated, status)
	}
	if result["name"] != "Labor Nord" {
		t.Fatalf("Expecting %v got '%v'", "Labor Nord", result["name"])
	}
}

func TestClientStatusMismatch(t *testing.T) {
	cl := client.NewWithRouter(testRouter())

	status, err := cl.RawGet("/gone", nil)
	if err == nil {
		t.Fatal("Expecting error for status mismatch")
	}
	if status != http.StatusNotFound {
		t.Fatalf("Expecting %v got '%v'", http.StatusNotFound, status)
	}
}
