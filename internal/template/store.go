package template

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"easel/internal/services"
)

//go:embed schema.json
var schemaJSON []byte

const schemaResource = "inmemory://easel/template.json"

var (
	// ErrNotFound reports a template path that does not exist.
	ErrNotFound = errors.New("template not found")
	// ErrParse reports a template that is not valid JSON or not template-shaped.
	ErrParse = errors.New("template parse error")
)

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func templateSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaResource, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaResource)
	})
	return compiledSchema, schemaErr
}

// Store loads job templates from disk. Templates are read on every call so
// edits take effect without a restart.
type Store struct {
	baseDir string
}

// NewStore returns a store resolving relative paths against baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Resolve returns the absolute location of path.
func (s *Store) Resolve(path string) string {
	if filepath.IsAbs(path) || s == nil || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// Load reads and validates the template at path.
func (s *Store) Load(path string) (Workflow, error) {
	resolved := s.Resolve(path)
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, services.Wrap(services.ErrTemplateLoad, "template", "read", resolved, err)
	}
	wf, err := Parse(data)
	if err != nil {
		return nil, services.Wrap(services.ErrTemplateLoad, "template", "parse", resolved, err)
	}
	return wf, nil
}

// Parse decodes template JSON. Numbers keep their literal form so untouched
// inputs are submitted exactly as written.
func Parse(data []byte) (Workflow, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	schema, err := templateSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: compile schema: %w", ErrParse, err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var wf Workflow
	dec = json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return wf, nil
}
