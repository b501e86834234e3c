// Package schema validates the shape of wire payloads before they are
// decoded. Schemas are compiled once and cached by name.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zkcred/zkcred/common"
)

var (
	compiled = make(map[string]*gojsonschema.Schema)
	mu       sync.RWMutex
)

// Register compiles a schema under a name. Registering a name twice replaces
// the schema.
func Register(name, schema string) error {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", name, err)
	}
	mu.Lock()
	compiled[name] = s
	mu.Unlock()
	return nil
}

// MustRegister is Register for package level schemas.
func MustRegister(name, schema string) {
	if err := Register(name, schema); err != nil {
		panic(err)
	}
}

// Validate checks a JSON document against a registered schema. Every
// problem is reported in a single ValidationError.
func Validate(name string, doc []byte) error {
	mu.RLock()
	s, ok := compiled[name]
	mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &common.ValidationError{Field: name, Reason: err.Error()}
	}
	if !result.Valid() {
		var b strings.Builder
		for _, e := range result.Errors() {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(e.String())
		}
		return &common.ValidationError{Field: name, Reason: b.String()}
	}
	return nil
}
