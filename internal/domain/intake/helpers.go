package intake

import (
	"regexp"
	"strings"

	"scribe-server/internal/domain/schema"
	"scribe-server/internal/utils/stringutils"
)

const maxTitleLen = 100

// Inlined base64 images blow past the store's payload limits, so they are
// stripped from any text headed there. Both markdown data-URI images and
// HTML img tags are covered.
var (
	markdownImageRe = regexp.MustCompile(`(?s)!\[.*?\]\(data:image/.*?\)`)
	htmlImageRe     = regexp.MustCompile(`(?s)<img[^>]+src=["']data:image/[^"']+["'][^>]*>`)
)

// SanitizeImageData removes inlined base64 image data from text.
func SanitizeImageData(text string) string {
	text = markdownImageRe.ReplaceAllString(text, "")
	text = htmlImageRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// SanitizeProperties strips inlined image data from the text-bearing values
// of a property set. Other value types pass through untouched.
func SanitizeProperties(props schema.Properties) schema.Properties {
	out := make(schema.Properties, len(props))
	for key, value := range props {
		switch v := value.(type) {
		case schema.TitleValue:
			out[key] = schema.TitleValue{Text: SanitizeImageData(v.Text)}
		case schema.RichTextValue:
			out[key] = schema.RichTextValue{Text: SanitizeImageData(v.Text)}
		default:
			out[key] = value
		}
	}
	return out
}

// EnsureTitle guarantees the property set carries a title value, so a record
// is never persisted nameless. The fallback is the input's first line,
// truncated; the target field is the schema's first title field when it has
// one.
func EnsureTitle(props schema.Properties, fields schema.Schema, fallbackText string) schema.Properties {
	for _, value := range props {
		if value.FieldType() == schema.TypeTitle {
			return props
		}
	}

	text := stringutils.Truncate(stringutils.FirstLine(fallbackText), maxTitleLen)
	if text == "" {
		text = "Untitled"
	}

	field := fields.FirstTitleField()
	if field == "" {
		field = "Name"
	}
	props[field] = schema.TitleValue{Text: text}
	return props
}
