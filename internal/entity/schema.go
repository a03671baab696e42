package entity

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://leadsync.local/schemas/"

var schemaFiles = map[LeadType]string{
	LeadTypeMessage:  "message.schema.json",
	LeadTypeCallback: "callback.schema.json",
}

var (
	schemasOnce sync.Once
	schemas     map[LeadType]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		schemasErr = err
		return
	}
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			schemasErr = err
			return
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(data)); err != nil {
			schemasErr = fmt.Errorf("lead schema load failed: %w", err)
			return
		}
	}

	compiled := make(map[LeadType]*jsonschema.Schema, len(schemaFiles))
	for leadType, file := range schemaFiles {
		s, err := c.Compile(schemaBaseURL + file)
		if err != nil {
			schemasErr = fmt.Errorf("lead schema compile failed for %s: %w", leadType, err)
			return
		}
		compiled[leadType] = s
	}
	schemas = compiled
}

// ValidateRecord checks a serialized lead against the schema of its LeadType.
// The lead type is read from the record itself.
func ValidateRecord(record []byte) (LeadType, error) {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return "", schemasErr
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(record))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("record is not valid json: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return "", fmt.Errorf("record is not a json object")
	}
	rawType, _ := obj["LeadType"].(string)
	leadType := LeadType(rawType)
	schema, ok := schemas[leadType]
	if !ok {
		return "", fmt.Errorf("no schema for lead type %q", rawType)
	}
	if err := schema.Validate(doc); err != nil {
		return leadType, fmt.Errorf("record does not match %s schema: %w", leadType, err)
	}
	return leadType, nil
}

// EncodeRecord serializes l and validates the result, so nothing that would
// fail a later RECEIVE is ever written.
func EncodeRecord(l *Lead) (json.RawMessage, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	if _, err := ValidateRecord(data); err != nil {
		return nil, err
	}
	return data, nil
}

// DecodeRecord validates and then decodes a stored record.
func DecodeRecord(record []byte) (*Lead, error) {
	if _, err := ValidateRecord(record); err != nil {
		return nil, err
	}
	var l Lead
	if err := json.Unmarshal(record, &l); err != nil {
		return nil, err
	}
	return &l, nil
}
