package schema

import (
	"encoding/json"
	"strings"
)

// storedValue mirrors the shape the store returns when reading a record's
// property values.
type storedValue struct {
	Type        string         `json:"type"`
	Title       []storedText   `json:"title"`
	RichText    []storedText   `json:"rich_text"`
	Select      *Option        `json:"select"`
	Status      *Option        `json:"status"`
	MultiSelect []Option       `json:"multi_select"`
	Date        *struct{ Start string `json:"start"` } `json:"date"`
	Checkbox    *bool          `json:"checkbox"`
	Number      *float64       `json:"number"`
}

type storedText struct {
	PlainText string `json:"plain_text"`
}

// PlainText concatenates the plain_text of title/rich_text fragments.
func PlainText(fragments []json.RawMessage) string {
	var b strings.Builder
	for _, raw := range fragments {
		var st storedText
		if err := json.Unmarshal(raw, &st); err != nil {
			continue
		}
		b.WriteString(st.PlainText)
	}
	return b.String()
}

// Flatten decodes one stored property value into the plain form used for
// prompt context: select/status to the option name, multi_select to a list of
// names, date to its start, title/rich_text to concatenated plain text,
// checkbox to a boolean. Unreadable or unsupported values flatten to nil.
func Flatten(raw json.RawMessage) any {
	var sv storedValue
	if err := json.Unmarshal(raw, &sv); err != nil {
		return nil
	}

	switch FieldType(sv.Type) {
	case TypeTitle:
		return joinStored(sv.Title)
	case TypeRichText:
		return joinStored(sv.RichText)
	case TypeSelect:
		if sv.Select == nil {
			return nil
		}
		return sv.Select.Name
	case TypeStatus:
		if sv.Status == nil {
			return nil
		}
		return sv.Status.Name
	case TypeMultiSelect:
		names := make([]string, 0, len(sv.MultiSelect))
		for _, o := range sv.MultiSelect {
			names = append(names, o.Name)
		}
		return names
	case TypeDate:
		if sv.Date == nil {
			return nil
		}
		return sv.Date.Start
	case TypeCheckbox:
		if sv.Checkbox == nil {
			return false
		}
		return *sv.Checkbox
	case TypeNumber:
		if sv.Number == nil {
			return nil
		}
		return *sv.Number
	default:
		return nil
	}
}

// FlattenRecord flattens every property of one stored record.
func FlattenRecord(props map[string]json.RawMessage) map[string]any {
	out := make(map[string]any, len(props))
	for name, raw := range props {
		out[name] = Flatten(raw)
	}
	return out
}

func joinStored(items []storedText) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.PlainText)
	}
	return b.String()
}
