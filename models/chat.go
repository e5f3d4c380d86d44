package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a widget or preview transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SupportRequest is the body sent to the backend support endpoint. Context
// carries the prior transcript serialized as "role: content" lines; the
// language and sector hints are free-form and forwarded unvalidated.
type SupportRequest struct {
	UserQuery string `json:"user_query"`
	Language  string `json:"language"`
	Sector    string `json:"sector"`
	Context   string `json:"context,omitempty"`
}

type SupportResponse struct {
	Reply string `json:"reply"`
}

// ConversationEntry is one logged exchange, read-only from the console.
type ConversationEntry struct {
	UserQuery string `json:"user_query"`
	BotReply  string `json:"bot_reply"`
	Timestamp string `json:"timestamp"`
	Language  string `json:"language"`
	Tokens    int    `json:"tokens"`
}

// ActivityEntry is one item of the most-recent-first activity feed.
type ActivityEntry struct {
	Timestamp int64           `json:"timestamp"`
	Payload   ActivityPayload `json:"payload"`
}

type ActivityPayload struct {
	Query string        `json:"query"`
	Usage ActivityUsage `json:"usage"`
}

type ActivityUsage struct {
	TotalTokens int `json:"total_tokens"`
}

// UploadResult is what the backend returns after extracting text from an
// uploaded file.
type UploadResult struct {
	Filename      string `json:"filename"`
	ExtractedText string `json:"extracted_text"`
}

// ScrapeResult is the extracted text for a batch of scraped pages.
type ScrapeResult struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}
