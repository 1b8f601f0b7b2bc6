package llm

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compileOnce     sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

func loadSchema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			compileErr = fmt.Errorf("read embedded schemas: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		for _, entry := range entries {
			data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", entry.Name(), err)
				return
			}
			if err := compiler.AddResource(entry.Name(), bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", entry.Name(), err)
				return
			}
		}

		schemas := make(map[string]*jsonschema.Schema, len(entries))
		for _, entry := range entries {
			schema, err := compiler.Compile(entry.Name())
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", entry.Name(), err)
				return
			}
			schemas[entry.Name()] = schema
		}
		compiledSchemas = schemas
	})

	if compileErr != nil {
		return nil, compileErr
	}
	schema, ok := compiledSchemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return schema, nil
}

// decodeResponse parses model text as exactly one JSON document, validates it
// against the task schema and decodes it into out.
func decodeResponse(task Task, text string, out interface{}) error {
	value, err := decodeStrictJSON([]byte(stripFences(text)))
	if err != nil {
		return &malformedError{err: fmt.Errorf("decode JSON: %w", err)}
	}

	schema, err := loadSchema(task.Schema)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return &malformedError{err: fmt.Errorf("schema validation failed: %w", err)}
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return &malformedError{err: fmt.Errorf("normalize JSON: %w", err)}
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		return &malformedError{err: fmt.Errorf("unmarshal: %w", err)}
	}
	return nil
}

func decodeStrictJSON(raw []byte) (interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("response is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("response contains trailing content")
	}

	return value, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return ""
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
