package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// emailPayloadSchema describes the inbound webhook body. Blank strings pass
// the schema and are rejected by postmaster.Validate.
const emailPayloadSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["from", "subject"],
	"properties": {
		"from":      {"type": "string"},
		"to":        {"type": "string"},
		"subject":   {"type": "string"},
		"text":      {"type": "string"},
		"html":      {"type": "string"},
		"messageId": {"type": "string"},
		"timestamp": {"type": "string", "format": "date-time"},
		"attachments": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"filename":    {"type": "string"},
					"contentType": {"type": "string"},
					"size":        {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`

var emailSchema = mustSchema(emailPayloadSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid payload schema: %v", err))
	}
	return s
}

// schemaProblems validates body against the email schema. It returns the
// non-"required" violations as readable strings; missing fields are left to
// postmaster.Validate so that they are reported in a fixed order.
func schemaProblems(body []byte) ([]string, error) {
	res, err := emailSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if res.Valid() {
		return nil, nil
	}
	var problems []string
	for _, e := range res.Errors() {
		if e.Type() == "required" {
			continue
		}
		problems = append(problems, strings.TrimPrefix(e.String(), "(root): "))
	}
	return problems, nil
}
