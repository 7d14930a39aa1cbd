// Package schema validates raw tracker responses against JSON Schemas before
// they are decoded into wire models.
//
// A response that fails validation is reported as a *SchemaError naming the
// schema and the offending field path; it is never coerced into a partial
// value.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrSchema matches every *SchemaError.
var ErrSchema = errors.New("response does not match schema")

// ErrUnknownSchema is returned when validating against an unregistered id.
var ErrUnknownSchema = errors.New("unknown schema")

const resourceBase = "https://trackerkit.invalid/schemas/"

// SchemaError describes why a payload was rejected.
type SchemaError struct {
	// Schema is the registered schema id.
	Schema string

	// Path is the dotted field path of the first violation, empty for the
	// document root (e.g. "fields.status.name", "issues.3.key").
	Path string

	// Reason is a human-readable description of the violation.
	Reason string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema %s: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("schema %s: %s: %s", e.Schema, e.Path, e.Reason)
}

// Is reports whether target is ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// Validator holds compiled schemas by id. It is safe for concurrent use.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
	printer *message.Printer
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{
		schemas: make(map[string]*jsonschema.Schema),
		printer: message.NewPrinter(language.English),
	}
}

// Register compiles a JSON Schema document under id, replacing any
// previous schema with the same id.
func (v *Validator) Register(id string, schema []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return fmt.Errorf("parse schema %s: %w", id, err)
	}

	url := resourceBase + id + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return fmt.Errorf("add schema %s: %w", id, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", id, err)
	}

	v.mu.Lock()
	v.schemas[id] = compiled
	v.mu.Unlock()
	return nil
}

// MustRegister is Register for package-level schema tables; it panics on a
// malformed schema.
func (v *Validator) MustRegister(id string, schema []byte) {
	if err := v.Register(id, schema); err != nil {
		panic(err)
	}
}

// Has reports whether id is registered.
func (v *Validator) Has(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.schemas[id]
	return ok
}

// Validate checks raw against the schema registered as id.
func (v *Validator) Validate(id string, raw []byte) error {
	v.mu.RLock()
	compiled, ok := v.schemas[id]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, id)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &SchemaError{Schema: id, Reason: "invalid JSON: " + err.Error()}
	}

	if err := compiled.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := firstLeaf(ve)
			return &SchemaError{
				Schema: id,
				Path:   strings.Join(leaf.InstanceLocation, "."),
				Reason: leaf.ErrorKind.LocalizedString(v.printer),
			}
		}
		return &SchemaError{Schema: id, Reason: err.Error()}
	}
	return nil
}

// Decode validates raw against id and unmarshals it into a T.
func Decode[T any](v *Validator, id string, raw []byte) (T, error) {
	var out T
	if err := v.Validate(id, raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &SchemaError{Schema: id, Reason: err.Error()}
	}
	return out, nil
}

// firstLeaf descends to the most specific violation. The root error of a
// failed validation is a summary whose causes carry the field locations.
func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
