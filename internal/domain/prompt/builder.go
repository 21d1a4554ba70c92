package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"scribe-server/internal/domain/schema"
)

// Turn is one prior message of a chat session.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// schemaInfo renders the field definitions in the compact form the model
// sees: field name to type, with the option names inlined for constrained
// fields.
func schemaInfo(fields schema.Schema) string {
	info := make(map[string]string, len(fields))
	for name, field := range fields {
		info[name] = field.Describe()
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// examplesText renders recent records as one flattened JSON object per line.
func examplesText(examples []map[string]any) string {
	var b strings.Builder
	for _, ex := range examples {
		data, err := json.Marshal(ex)
		if err != nil {
			continue
		}
		b.WriteString("- ")
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String()
}

// BuildExtraction assembles the single-shot extraction prompt: operator
// instructions, the target fields, a few recent records as grounding, then
// the input text.
func BuildExtraction(text string, fields schema.Schema, examples []map[string]any, systemPrompt string) string {
	return fmt.Sprintf(`
%s

Target Database Schema:
%s

Recent Examples:
%s

User Input:
%s

Output JSON format strictly. NO markdown code blocks.
`, systemPrompt, schemaInfo(fields), examplesText(examples), text)
}

// historyText renders prior turns, tagging system-injected context so the
// model can tell reference material from the conversation itself.
func historyText(history []Turn) string {
	var b strings.Builder
	for _, turn := range history {
		role := turn.Role
		if role == "" {
			role = "user"
		}
		if role == "system" {
			b.WriteString("[System Info]: " + turn.Content + "\n")
			continue
		}
		b.WriteString(strings.ToUpper(role) + ": " + turn.Content + "\n")
	}
	return b.String()
}

// BuildChat assembles the conversational prompt. The reply contract is part
// of the prompt: the model answers with a message, an optional refined_text
// and, only when the user wants data saved, a properties object keyed by the
// target fields.
func BuildChat(text string, fields schema.Schema, systemPrompt string, history []Turn) string {
	input := text
	if input == "" {
		input = "(No text provided)"
	}
	return fmt.Sprintf(`
%s

Target Schema:
%s

Session History:
%s

Current User Input:
%s

Restraints:
- You are a helpful AI assistant.
- Your output must be valid JSON ONLY.
- Structure:
{
  "message": "Response to the user",
  "refined_text": "Refined version of the input, if applicable (or null)",
  "properties": { "Property Name": "Value" } // Only if user intends to save data
}
- If the user is just chatting, "properties" should be null.
- If the user wants to save/add data, fill "properties" according to the Schema.
`, systemPrompt, schemaInfo(fields), historyText(history), input)
}

// imageNotice is appended when the request carries an image so the model
// grounds its reply in the attachment.
const imageNotice = "\n\n[IMPORTANT: The user has attached an image. Please analyze the image content and respond based on what you see in the image.]"

// WithImageNotice appends the image-grounding instruction to a prompt.
func WithImageNotice(prompt string) string {
	return prompt + imageNotice
}
