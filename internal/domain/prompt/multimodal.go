package prompt

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// MultimodalParts builds the content parts for an image-bearing request:
// the text prompt first, then the image as a base64 data URI.
func MultimodalParts(text, imageData, mimeType string) []openai.ChatMessagePart {
	return []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: text,
		},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", mimeType, imageData),
			},
		},
	}
}
