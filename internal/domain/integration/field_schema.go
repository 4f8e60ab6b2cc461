package integration

// FieldKind classifies a platform field
type FieldKind string

const (
	FieldKindStandard     FieldKind = "standard"
	FieldKindItemSpecific FieldKind = "item_specific"
	FieldKindAttribute    FieldKind = "attribute"
)

// PlatformField describes one field a platform accepts
type PlatformField struct {
	Name      string    `yaml:"name" json:"name"`
	Label     string    `yaml:"label" json:"label"`
	Type      string    `yaml:"type" json:"type"`
	Required  bool      `yaml:"required" json:"required"`
	Kind      FieldKind `yaml:"kind" json:"kind"`
	MaxLength int       `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Options   []string  `yaml:"options,omitempty" json:"options,omitempty"`
}

// PlatformSchema is the field schema of one platform
type PlatformSchema struct {
	Platform PlatformCode    `yaml:"platform" json:"platform"`
	Fields   []PlatformField `yaml:"fields" json:"fields"`
}

// Field returns the named field
func (s PlatformSchema) Field(name string) (PlatformField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return PlatformField{}, false
}

// RequiredFields returns the names of all required fields, in schema order
func (s PlatformSchema) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// FieldNames returns all field names, in schema order
func (s PlatformSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}
