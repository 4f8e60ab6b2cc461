package integration

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemaFS embed.FS

// SchemaCatalog is the immutable set of platform field schemas
type SchemaCatalog struct {
	schemas map[PlatformCode]PlatformSchema
}

var (
	defaultCatalog     *SchemaCatalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultSchemaCatalog returns the catalog built from the embedded schema files.
// The files are parsed once per process.
func DefaultSchemaCatalog() (*SchemaCatalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = LoadSchemaCatalog(schemaFS)
	})
	return defaultCatalog, defaultCatalogErr
}

// LoadSchemaCatalog parses every schemas/*.yaml file of fsys
func LoadSchemaCatalog(fsys fs.FS) (*SchemaCatalog, error) {
	entries, err := fs.ReadDir(fsys, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	schemas := make(map[PlatformCode]PlatformSchema, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, "schemas/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		schema, err := ParsePlatformSchema(data)
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", entry.Name(), err)
		}
		if _, dup := schemas[schema.Platform]; dup {
			return nil, fmt.Errorf("duplicate schema for platform %s", schema.Platform)
		}
		schemas[schema.Platform] = schema
	}
	return &SchemaCatalog{schemas: schemas}, nil
}

// ParsePlatformSchema parses one YAML schema document
func ParsePlatformSchema(data []byte) (PlatformSchema, error) {
	var schema PlatformSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return PlatformSchema{}, err
	}
	if !schema.Platform.IsValid() {
		return PlatformSchema{}, fmt.Errorf("%w: %q", ErrInvalidPlatformCode, schema.Platform)
	}
	seen := make(map[string]struct{}, len(schema.Fields))
	for i, f := range schema.Fields {
		if f.Name == "" {
			return PlatformSchema{}, fmt.Errorf("field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return PlatformSchema{}, fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Kind == "" {
			schema.Fields[i].Kind = FieldKindStandard
		}
		if f.Type == "" {
			schema.Fields[i].Type = "string"
		}
	}
	return schema, nil
}

// Schema returns the schema of a platform. The returned value is a copy.
func (c *SchemaCatalog) Schema(platform PlatformCode) (PlatformSchema, bool) {
	schema, ok := c.schemas[platform]
	if !ok {
		return PlatformSchema{}, false
	}
	fields := make([]PlatformField, len(schema.Fields))
	copy(fields, schema.Fields)
	return PlatformSchema{Platform: schema.Platform, Fields: fields}, true
}

// Platforms returns the platforms with a schema
func (c *SchemaCatalog) Platforms() []PlatformCode {
	out := make([]PlatformCode, 0, len(c.schemas))
	for _, p := range AllPlatforms() {
		if _, ok := c.schemas[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
