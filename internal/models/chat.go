package models

// SourceCitation references a document backing an assistant reply.
type SourceCitation struct {
	Title          string  `json:"title"`
	Source         string  `json:"source,omitempty"`
	URL            string  `json:"url,omitempty"`
	Tier           Tier    `json:"tier,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp string           `json:"timestamp,omitempty"`
	Sources   []SourceCitation `json:"sources,omitempty"`
}

// ChatResponse is the backend reply envelope.
type ChatResponse struct {
	ConversationID string           `json:"conversation_id"`
	Message        ChatMessage      `json:"message"`
	Sources        []SourceCitation `json:"sources"`
	Confidence     Confidence       `json:"confidence"`
}

// Suggestion is a starter question offered before the first turn.
type Suggestion struct {
	Question string     `json:"question"`
	Category CategoryID `json:"category"`
}
