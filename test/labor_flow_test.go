package test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/acme-health/labor/directory"
	"github.com/acme-health/labor/events"
)

type LaborFlowTestSuite struct {
	IntegrationTestSuite
}

func TestLaborFlowTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, &LaborFlowTestSuite{})
}

func laborDoc(name, username string) map[string]any {
	return map[string]any{
		"name":          name,
		"telefonnummer": "089123456",
		"fax":           "08912345",
		"adresse": map[string]any{
			"strasse":    "Marienplatz",
			"hausnummer": "1",
			"plz":        "80331",
			"ort":        "Muenchen",
		},
		"laborTests":      []string{"B"},
		"testetAufCorona": true,
		"user": map[string]any{
			"username": username,
			"password": "geheim",
		},
	}
}

func (s *LaborFlowTestSuite) createLabor(name, username string) string {
	_, header, err := s.client().RawPostWithHeader("/api", nil, laborDoc(name, username), nil)
	s.Require().NoError(err)
	location := header.Get("Location")
	s.Require().NotEmpty(location, "Location header")
	return location[strings.LastIndex(location, "/")+1:]
}

func (s *LaborFlowTestSuite) TestLifecycle() {
	id := s.createLabor("Labor Nord", "marie")
	owner := s.client().WithBasicAuth("marie", "geheim")

	// read through basic authentication against the real directory
	var result map[string]any
	status, header, err := owner.RawGetWithHeader("/api/"+id, nil, &result)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Equal(`"0"`, header.Get("Etag"))
	s.Require().Equal("Labor Nord", result["name"])
	s.Require().Equal("marie", result["username"])

	// conditional read
	status, _, err = owner.RawGetWithHeader("/api/"+id, map[string]string{"If-None-Match": `"0"`}, nil)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusNotModified, status)

	// full update with optimistic locking
	doc := laborDoc("Labor Nord Neu", "marie")
	delete(doc, "user")
	status, header, err = owner.RawPutWithHeader("/api/"+id, map[string]string{"If-Match": `"0"`}, doc, nil)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusNoContent, status)
	s.Require().Equal(`"1"`, header.Get("Etag"))

	// a stale version is rejected
	status, _, _ = owner.RawPutWithHeader("/api/"+id, map[string]string{"If-Match": `"0"`}, doc, nil)
	s.Require().Equal(http.StatusPreconditionFailed, status)

	// partial update
	operations := []map[string]string{
		{"op": "replace", "path": "/telefonnummer", "value": "089654321"},
		{"op": "add", "path": "/laborTests", "value": "D"},
	}
	status, header, err = owner.RawPatchWithHeader("/api/"+id, map[string]string{"If-Match": `"1"`}, operations, nil)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusNoContent, status)
	s.Require().Equal(`"2"`, header.Get("Etag"))

	var version []byte
	_, err = s.client().RawGet("/api/version/"+id, &version)
	s.Require().NoError(err)
	s.Require().Equal("2", string(version))

	// binary file storage
	content := []byte("%PDF-1.4 zulassung")
	status, err = owner.RawPutBlob("/api/"+id+"/file", map[string]string{"Content-Type": "application/pdf"}, content)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusNoContent, status)

	var blob []byte
	_, fileHeader, err := owner.RawGetBlobWithHeader("/api/"+id+"/file", nil, &blob)
	s.Require().NoError(err)
	s.Require().Equal("application/pdf", fileHeader.Get("Content-Type"))
	s.Require().Equal(content, blob)

	// only the admin may delete
	status, _ = owner.RawDelete("/api/" + id)
	s.Require().Equal(http.StatusForbidden, status)

	_, err = s.directory.Create(context.Background(), "admin", "adminsecret", []string{directory.RoleAdmin})
	s.Require().NoError(err)
	admin := s.client().WithBasicAuth("admin", "adminsecret")
	status, err = admin.RawDelete("/api/" + id)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusNoContent, status)

	status, _ = admin.RawGet("/api/"+id, nil)
	s.Require().Equal(http.StatusNotFound, status)

	s.assertEventOperations(id, []events.Operation{
		events.OperationCreate,
		events.OperationUpdate,
		events.OperationUpdate,
		events.OperationDelete,
	})
}

func (s *LaborFlowTestSuite) TestSearchAndNames() {
	s.createLabor("Westlabor", "willi")
	s.createLabor("Westzentrum", "wanda")

	var collection map[string]any
	status, err := s.client().RawGet("/api?name=westlabor", &collection)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, status)
	embedded := collection["_embedded"].(map[string]any)
	s.Require().Len(embedded["labore"], 1)

	status, _ = s.client().RawGet("/api?ort=Nirgendwo", nil)
	s.Require().Equal(http.StatusNotFound, status)

	var names []string
	_, err = s.client().RawGet("/api/name/west", &names)
	s.Require().NoError(err)
	s.Require().Equal([]string{"Westlabor", "Westzentrum"}, names)

	// regex metacharacters in the prefix are treated literally
	names = nil
	status, err = s.client().RawGet("/api/name/west(", &names)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Empty(names)
}

// assertEventOperations consumes the event topic from the beginning and
// waits until the expected lifecycle operations for the laboratory have
// arrived. The publisher writes asynchronously, so this polls.
func (s *LaborFlowTestSuite) assertEventOperations(laborID string, expected []events.Operation) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{s.kafkaAddr},
		Topic:       eventTopic,
		Partition:   0,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	var operations []events.Operation
	require.Eventually(s.T(), func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for {
			message, err := reader.ReadMessage(ctx)
			if err != nil {
				break
			}
			if string(message.Key) != laborID {
				continue
			}
			var event events.Event
			s.Require().NoError(json.Unmarshal(message.Value, &event))
			operations = append(operations, event.Operation)
		}
		return len(operations) >= len(expected)
	}, 30*time.Second, 500*time.Millisecond)

	s.Require().Equal(expected, operations)
}
