package export

import (
	"encoding/json"
	"time"
)

// DefaultTitle is used when a conversation in the export has no title.
const DefaultTitle = "無題の会話"

// Message is a single normalized message. Content is sanitized plain text,
// capped at maxMessageRunes. CreateTime is nil when the export omits it;
// consumers fall back to the conversation's create time.
type Message struct {
	ID          string     `json:"id"`
	Role        string     `json:"role"`
	ContentType string     `json:"content_type"`
	Content     string     `json:"content"`
	CreateTime  *time.Time `json:"create_time,omitempty"`
	ModelSlug   string     `json:"model_slug,omitempty"`
}

// Conversation is a normalized conversation: the export's node graph
// flattened into chronologically ordered messages. Immutable after parsing.
type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
	ModelSlug  string    `json:"model_slug,omitempty"`
	IsArchived bool      `json:"is_archived"`
	IsStarred  bool      `json:"is_starred"`
	GizmoID    string    `json:"gizmo_id,omitempty"`
	Messages   []Message `json:"messages"`
}

// Result is a successful parse: conversations newest-first, plus message
// counts for observability. Skipped counts system messages and messages
// with no extractable text.
type Result struct {
	Conversations   []Conversation `json:"conversations"`
	TotalMessages   int            `json:"total_messages"`
	SkippedMessages int            `json:"skipped_messages"`
}

type ErrorCode string

const (
	ErrInvalidJSON     ErrorCode = "INVALID_JSON"
	ErrInvalidFormat   ErrorCode = "INVALID_FORMAT"
	ErrEmptyFile       ErrorCode = "EMPTY_FILE"
	ErrFileTooLarge    ErrorCode = "FILE_TOO_LARGE"
	ErrInvalidFileType ErrorCode = "INVALID_FILE_TYPE"
	ErrReadError       ErrorCode = "READ_ERROR"
)

// ParseError is the only failure mode of the normalizer. Codes are
// mutually exclusive; Details is optional diagnostic text.
type ParseError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *ParseError) Error() string {
	if e.Details != "" {
		return string(e.Code) + ": " + e.Message + " (" + e.Details + ")"
	}
	return string(e.Code) + ": " + e.Message
}

// raw export shapes, consumed during parsing only

type rawConversation struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	CreateTime       float64            `json:"create_time"`
	UpdateTime       float64            `json:"update_time"`
	Mapping          map[string]rawNode `json:"mapping"`
	DefaultModelSlug string             `json:"default_model_slug"`
	IsArchived       bool               `json:"is_archived"`
	IsStarred        bool               `json:"is_starred"`
	GizmoID          string             `json:"gizmo_id"`
}

type rawNode struct {
	ID       string      `json:"id"`
	Parent   *string     `json:"parent"`
	Children []string    `json:"children"`
	Message  *rawMessage `json:"message"`
}

type rawMessage struct {
	ID     string `json:"id"`
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	CreateTime *float64 `json:"create_time"`
	Content    struct {
		ContentType string            `json:"content_type"`
		Parts       []json.RawMessage `json:"parts"`
	} `json:"content"`
	Metadata struct {
		ModelSlug string `json:"model_slug"`
	} `json:"metadata"`
}
