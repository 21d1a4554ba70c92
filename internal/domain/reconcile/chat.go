package reconcile

import (
	"fmt"

	"scribe-server/internal/domain/schema"
)

// ChatReply is the normalized conversational model output. Message is always
// non-empty; Raw carries the unparseable original for diagnostics.
type ChatReply struct {
	Message     string            `json:"message"`
	RefinedText string            `json:"refined_text,omitempty"`
	Properties  schema.Properties `json:"properties,omitempty"`
	Raw         string            `json:"raw_response,omitempty"`
}

// NormalizeChatReply repairs and normalizes conversational model output. It
// never fails: unparseable output degrades to a fallback message carrying
// the raw text, a missing message is synthesized, and field values the model
// left at the top level are lifted under properties before coercion.
func NormalizeChatReply(raw string, fields schema.Schema) ChatReply {
	data := parseObject(raw)
	if data == nil {
		return ChatReply{
			Message: "Could not parse the model reply.",
			Raw:     raw,
		}
	}
	if len(data) == 0 {
		return ChatReply{Message: "The model returned no usable reply."}
	}

	reply := ChatReply{}
	if s, ok := data["refined_text"].(string); ok {
		reply.RefinedText = s
	}

	// Lift field values the model emitted at the top level instead of
	// nesting them under properties.
	rawProps, hasProps := data["properties"].(map[string]any)
	if !hasProps {
		for key := range data {
			if _, ok := fields[key]; ok {
				if rawProps == nil {
					rawProps = map[string]any{}
				}
				rawProps[key] = data[key]
			}
		}
	}
	if rawProps != nil {
		reply.Properties = CoerceProperties(rawProps, fields)
	}

	if s, ok := data["message"].(string); ok && s != "" {
		reply.Message = s
		return reply
	}

	switch {
	case reply.RefinedText != "":
		reply.Message = fmt.Sprintf("Suggested: %q.", reply.RefinedText)
	case len(rawProps) > 0:
		reply.Message = "Extracted properties from the input."
	default:
		reply.Message = "Done."
	}
	return reply
}
