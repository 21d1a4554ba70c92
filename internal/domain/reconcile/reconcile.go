package reconcile

import (
	"encoding/json"
	"strconv"
	"strings"

	"scribe-server/internal/domain/schema"
)

// stripFences removes surrounding markdown code-fence markers from model
// output so fenced and unfenced JSON parse identically.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

// parseObject parses model output into a map, tolerating surrounding prose
// and list-wrapped objects. A nil map means the output was unrecoverable.
func parseObject(raw string) map[string]any {
	cleaned := stripFences(raw)

	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start == -1 || end <= start {
			return nil
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &value); err != nil {
			return nil
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return v
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
			break
		}
		return map[string]any{}
	default:
		return nil
	}
}

// Reconcile maps untrusted model output onto the schema's typed fields. It
// never fails: unrecoverable output yields an empty property set, unknown
// keys are dropped, and each value is coerced per the field's declared type.
func Reconcile(raw string, fields schema.Schema) schema.Properties {
	data := parseObject(raw)
	return CoerceProperties(data, fields)
}

// CoerceProperties applies the per-type coercion rules to an already parsed
// object. Keys absent from the schema are dropped.
func CoerceProperties(data map[string]any, fields schema.Schema) schema.Properties {
	props := schema.Properties{}
	for key, value := range data {
		field, ok := fields[key]
		if !ok {
			continue
		}
		if coerced, ok := coerce(value, field.Type); ok {
			props[key] = coerced
		}
	}
	return props
}

// coerce converts one loosely-typed value into the typed variant for the
// field. The second return reports whether the field should be emitted at
// all; each type has its own omission rule.
func coerce(value any, fieldType schema.FieldType) (schema.Value, bool) {
	switch fieldType {
	case schema.TypeSelect:
		if name := optionName(value); name != "" {
			return schema.SelectValue{Name: name}, true
		}
		return nil, false

	case schema.TypeStatus:
		if name := optionName(value); name != "" {
			return schema.StatusValue{Name: name}, true
		}
		return nil, false

	case schema.TypeMultiSelect:
		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		names := []string{}
		for _, item := range items {
			if name := optionName(item); name != "" {
				names = append(names, name)
			}
		}
		return schema.MultiSelectValue{Names: names}, true

	case schema.TypeDate:
		v := value
		if obj, ok := value.(map[string]any); ok {
			v = obj["start"]
		}
		if s := stringify(v); s != "" {
			return schema.DateValue{Start: s}, true
		}
		return nil, false

	case schema.TypeCheckbox:
		return schema.CheckboxValue{Checked: truthy(value)}, true

	case schema.TypeNumber:
		if n, ok := toNumber(value); ok {
			return schema.NumberValue{Value: n}, true
		}
		return nil, false

	case schema.TypeTitle:
		return schema.TitleValue{Text: fragmentText(value)}, true

	case schema.TypeRichText:
		return schema.RichTextValue{Text: fragmentText(value)}, true

	default:
		// people, files: identity resolution is out of scope.
		return nil, false
	}
}

// optionName extracts an option's name from a bare value or a {name} object.
func optionName(value any) string {
	if obj, ok := value.(map[string]any); ok {
		value = obj["name"]
	}
	return stringify(value)
}

// fragmentText accepts either a plain value or a list of {plain_text}
// fragments and returns the concatenated text.
func fragmentText(value any) string {
	if items, ok := value.([]any); ok {
		var b strings.Builder
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if pt, ok := obj["plain_text"].(string); ok {
				b.WriteString(pt)
			}
		}
		return b.String()
	}
	return stringify(value)
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
