package schema

import "encoding/json"

// Value is one typed property value in the store's wire shape. The concrete
// variants form a closed set, one per supported field type; people and files
// have no variant because the pipeline never writes them.
type Value interface {
	FieldType() FieldType
}

// Properties is a validated, schema-conformant property map ready to be
// persisted. Keys are always a subset of the target schema's field names.
type Properties map[string]Value

// textFragment is the single-fragment content object shape the store expects
// for title and rich_text values.
type textFragment struct {
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

// fragmentCharLimit is the store's per-fragment content ceiling. Longer text
// is split across fragments.
const fragmentCharLimit = 2000

func fragments(text string) []textFragment {
	runes := []rune(text)
	out := make([]textFragment, 0, 1)
	for i := 0; ; i += fragmentCharLimit {
		end := i + fragmentCharLimit
		if end > len(runes) {
			end = len(runes)
		}
		var f textFragment
		f.Text.Content = string(runes[i:end])
		out = append(out, f)
		if end >= len(runes) {
			break
		}
	}
	return out
}

type TitleValue struct {
	Text string
}

func (TitleValue) FieldType() FieldType { return TypeTitle }

func (v TitleValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"title": fragments(v.Text)})
}

type RichTextValue struct {
	Text string
}

func (RichTextValue) FieldType() FieldType { return TypeRichText }

func (v RichTextValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"rich_text": fragments(v.Text)})
}

type SelectValue struct {
	Name string
}

func (SelectValue) FieldType() FieldType { return TypeSelect }

func (v SelectValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"select": Option{Name: v.Name}})
}

type StatusValue struct {
	Name string
}

func (StatusValue) FieldType() FieldType { return TypeStatus }

func (v StatusValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"status": Option{Name: v.Name}})
}

type MultiSelectValue struct {
	Names []string
}

func (MultiSelectValue) FieldType() FieldType { return TypeMultiSelect }

func (v MultiSelectValue) MarshalJSON() ([]byte, error) {
	opts := make([]Option, 0, len(v.Names))
	for _, name := range v.Names {
		opts = append(opts, Option{Name: name})
	}
	return json.Marshal(map[string]any{"multi_select": opts})
}

type DateValue struct {
	Start string
}

func (DateValue) FieldType() FieldType { return TypeDate }

func (v DateValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"date": map[string]string{"start": v.Start}})
}

type CheckboxValue struct {
	Checked bool
}

func (CheckboxValue) FieldType() FieldType { return TypeCheckbox }

func (v CheckboxValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]bool{"checkbox": v.Checked})
}

type NumberValue struct {
	Value float64
}

func (NumberValue) FieldType() FieldType { return TypeNumber }

func (v NumberValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{"number": v.Value})
}
