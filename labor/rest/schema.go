package rest

import (
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// laborSchema is a structural gate only: it rejects documents with wrong
// shapes or types before decoding. Field rules like the plz pattern stay
// in the domain validator so violation reporting remains exact.
const laborSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "adresse"],
	"properties": {
		"name": { "type": "string" },
		"telefonnummer": { "type": "string" },
		"fax": { "type": "string" },
		"testetAufCorona": { "type": "boolean" },
		"laborTests": {
			"type": "array",
			"items": { "type": "string" }
		},
		"adresse": {
			"type": "object",
			"properties": {
				"strasse": { "type": "string" },
				"hausnummer": { "type": "string" },
				"plz": { "type": "string" },
				"ort": { "type": "string" }
			}
		},
		"zustaendigesGesundheitsamt": {
			"type": "object",
			"properties": {
				"bundesland": { "type": "string" },
				"landkreis": { "type": "string" },
				"adresse": { "type": "object" }
			}
		},
		"user": {
			"type": "object",
			"properties": {
				"username": { "type": "string" },
				"password": { "type": "string" }
			}
		}
	}
}`

var laborSchemaValidator = func() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(laborSchema))
	if err != nil {
		panic(err)
	}
	return schema
}()

// validateLaborDocument checks the structural shape of an incoming labor
// document.
func validateLaborDocument(body []byte) error {
	result, err := laborSchemaValidator.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.New("invalid labor document")
	}
	if !result.Valid() {
		msg := "the document is not valid:\n"
		for _, e := range result.Errors() {
			msg += fmt.Sprintf("- %s\n", e)
		}
		return errors.New(msg)
	}
	return nil
}
