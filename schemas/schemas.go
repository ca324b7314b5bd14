// Package schemas embeds the JSON Schemas of the wire messages and validates
// raw client frames against them before they are decoded.
package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed *.schema.json
var files embed.FS

const baseURL = "https://waterchores.dev/schemas/"

// byType maps a message type to its schema file.
var byType = map[string]string{
	"HELLO": "hello.schema.json",
	"INPUT": "input.schema.json",
	"RESET": "reset.schema.json",
	"STATE": "state.schema.json",
}

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// Load compiles every embedded schema.
func Load() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range byType {
		b, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(baseURL+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	v := &Validator{schemas: map[string]*jsonschema.Schema{}}
	for typ, name := range byType {
		s, err := c.Compile(baseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.schemas[typ] = s
	}
	return v, nil
}

// Has reports whether msgType has a schema.
func (v *Validator) Has(msgType string) bool {
	_, ok := v.schemas[msgType]
	return ok
}

// Validate checks a raw JSON message of the given type. Types without a
// schema pass.
func (v *Validator) Validate(msgType string, raw []byte) error {
	s, ok := v.schemas[msgType]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
