package web

const (
	esDone      = "[DONE]"
	welcomeText = "Hello! How can I help you today?"
)

// ChatRequest of /api/chat
type ChatRequest struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversation_id,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
}

// ChatMessage a reply or a delta of reply
type ChatMessage struct {
	ID           string `json:"id,omitempty"`
	Text         string `json:"text,omitempty"`
	Delta        string `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Error        string `json:"error,omitempty"`
}
