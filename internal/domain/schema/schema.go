package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldType enumerates the collection field kinds the pipeline understands.
type FieldType string

const (
	TypeTitle       FieldType = "title"
	TypeRichText    FieldType = "rich_text"
	TypeSelect      FieldType = "select"
	TypeMultiSelect FieldType = "multi_select"
	TypeStatus      FieldType = "status"
	TypeDate        FieldType = "date"
	TypeCheckbox    FieldType = "checkbox"
	TypeNumber      FieldType = "number"
	TypePeople      FieldType = "people"
	TypeFiles       FieldType = "files"
)

// HasOptions reports whether the type carries a declared option set.
func (t FieldType) HasOptions() bool {
	return t == TypeSelect || t == TypeMultiSelect || t == TypeStatus
}

// Option is one declared choice of a select-like field.
type Option struct {
	Name string `json:"name"`
}

// Field is one typed field definition of a collection schema.
type Field struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Options []Option  `json:"options,omitempty"`
}

// Schema maps field names to their definitions. The type of a field is
// immutable once fetched; options are only populated for select-like types.
type Schema map[string]Field

// FirstTitleField returns the name of the first title-typed field, or "".
// Iteration is name-ordered so the result is stable.
func (s Schema) FirstTitleField() string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if s[name].Type == TypeTitle {
			return name
		}
	}
	return ""
}

// OptionNames returns the declared option names for a select-like field.
func (f Field) OptionNames() []string {
	names := make([]string, 0, len(f.Options))
	for _, o := range f.Options {
		names = append(names, o.Name)
	}
	return names
}

// rawField mirrors the store's field definition payload. The option set lives
// under a key named after the field type.
type rawField struct {
	Type        string          `json:"type"`
	Select      *rawOptionGroup `json:"select,omitempty"`
	MultiSelect *rawOptionGroup `json:"multi_select,omitempty"`
	Status      *rawOptionGroup `json:"status,omitempty"`
}

type rawOptionGroup struct {
	Options []Option `json:"options"`
}

// Parse builds a Schema from the raw properties object returned by the store.
func Parse(raw json.RawMessage) (Schema, error) {
	var fields map[string]rawField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	s := make(Schema, len(fields))
	for name, rf := range fields {
		field := Field{Name: name, Type: FieldType(rf.Type)}
		switch field.Type {
		case TypeSelect:
			if rf.Select != nil {
				field.Options = rf.Select.Options
			}
		case TypeMultiSelect:
			if rf.MultiSelect != nil {
				field.Options = rf.MultiSelect.Options
			}
		case TypeStatus:
			if rf.Status != nil {
				field.Options = rf.Status.Options
			}
		}
		s[name] = field
	}
	return s, nil
}

// Describe renders the compact "type [options: ...]" form used in prompts.
func (f Field) Describe() string {
	desc := string(f.Type)
	if f.Type.HasOptions() && len(f.Options) > 0 {
		desc += fmt.Sprintf(" options: [%s]", strings.Join(f.OptionNames(), ", "))
	}
	return desc
}

// MarshalJSON emits the store's field creation payload, e.g.
// {"select":{"options":[{"name":"A"}]}} or {"title":{}}.
func (f Field) MarshalJSON() ([]byte, error) {
	payload := map[string]any{}
	if f.Type.HasOptions() {
		payload[string(f.Type)] = map[string]any{"options": f.Options}
	} else {
		payload[string(f.Type)] = map[string]any{}
	}
	return json.Marshal(payload)
}
