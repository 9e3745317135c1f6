package source

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBaseURL = "https://schemas.storesync.local/"

// Required fields only; everything else is decoded leniently.
var schemaDocuments = map[string]string{
	"customer.json": `{
		"type": "object",
		"required": ["id", "updated_at"],
		"properties": {
			"id": {"type": ["integer", "string"]},
			"updated_at": {"type": "string"},
			"email": {"type": ["string", "null"]}
		}
	}`,
	"product.json": `{
		"type": "object",
		"required": ["id", "title", "updated_at"],
		"properties": {
			"id": {"type": ["integer", "string"]},
			"title": {"type": "string"},
			"updated_at": {"type": "string"},
			"variants": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "price"],
					"properties": {
						"id": {"type": ["integer", "string"]},
						"price": {"type": "string"}
					}
				}
			}
		}
	}`,
	"order.json": `{
		"type": "object",
		"required": ["id", "updated_at", "total_price"],
		"properties": {
			"id": {"type": ["integer", "string"]},
			"updated_at": {"type": "string"},
			"total_price": {"type": "string"},
			"customer": {"type": ["object", "null"]},
			"line_items": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "price"],
					"properties": {
						"id": {"type": ["integer", "string"]},
						"price": {"type": "string"}
					}
				}
			}
		}
	}`,
	"event.json": `{
		"type": "object",
		"anyOf": [
			{"required": ["id"]},
			{"required": ["token"]}
		]
	}`,
}

var schemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	for name, doc := range schemaDocuments {
		parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
		if err != nil {
			panic(fmt.Sprintf("parse schema %s: %v", name, err))
		}
		if err := compiler.AddResource(schemaBaseURL+name, parsed); err != nil {
			panic(fmt.Sprintf("add schema %s: %v", name, err))
		}
	}

	compiled := make(map[string]*jsonschema.Schema, len(schemaDocuments))
	for name := range schemaDocuments {
		sch, err := compiler.Compile(schemaBaseURL + name)
		if err != nil {
			panic(fmt.Sprintf("compile schema %s: %v", name, err))
		}
		compiled[name] = sch
	}
	return compiled
}

func validate(schemaName string, raw []byte) error {
	sch, ok := schemas[schemaName]
	if !ok {
		return fmt.Errorf("unknown schema %s", schemaName)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
