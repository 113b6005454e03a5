package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	maxFileSize     = 1000 * 1024 * 1024 // 1GB
	maxMessageRunes = 50000
)

// ParseFile reads and parses a conversations.json export from disk.
// The returned error, when non-nil, is always a *ParseError.
func ParseFile(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ParseError{
			Code:    ErrReadError,
			Message: "ファイルの読み込みに失敗しました。",
			Details: err.Error(),
		}
	}
	if info.Size() > maxFileSize {
		return nil, &ParseError{
			Code:    ErrFileTooLarge,
			Message: fmt.Sprintf("ファイルサイズが大きすぎます（%dMB）。1GB以下のファイルを選択してください。", info.Size()/1024/1024),
		}
	}
	if !strings.HasSuffix(path, ".json") {
		return nil, &ParseError{
			Code:    ErrInvalidFileType,
			Message: "JSONファイルを選択してください。",
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{
			Code:    ErrReadError,
			Message: "ファイルの読み込みに失敗しました。ファイルが破損している可能性があります。",
			Details: err.Error(),
		}
	}
	return Parse(data)
}

// Parse converts raw export bytes into normalized conversations, newest
// first. The returned error, when non-nil, is always a *ParseError.
func Parse(data []byte) (*Result, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &ParseError{Code: ErrEmptyFile, Message: "ファイルが空です。"}
	}

	var raws []rawConversation
	if err := json.Unmarshal(data, &raws); err != nil {
		if !json.Valid(data) {
			return nil, &ParseError{
				Code:    ErrInvalidJSON,
				Message: "JSONの解析に失敗しました。有効なJSONファイルを選択してください。",
			}
		}
		return nil, &ParseError{
			Code:    ErrInvalidFormat,
			Message: "ChatGPTエクスポート形式ではありません。conversations.jsonを選択してください。",
			Details: "ルート要素が配列ではありません",
		}
	}

	if len(raws) == 0 {
		return nil, &ParseError{Code: ErrEmptyFile, Message: "会話データが見つかりませんでした。"}
	}
	if raws[0].ID == "" || raws[0].Mapping == nil {
		return nil, &ParseError{
			Code:    ErrInvalidFormat,
			Message: "ChatGPTエクスポート形式ではありません。conversations.jsonを選択してください。",
			Details: "必要なフィールド（mapping, id）が見つかりません",
		}
	}

	result := &Result{Conversations: make([]Conversation, 0, len(raws))}
	for _, raw := range raws {
		msgs, skipped := flattenMapping(raw.Mapping)
		result.TotalMessages += len(msgs) + skipped
		result.SkippedMessages += skipped

		title := raw.Title
		if title == "" {
			title = DefaultTitle
		}
		result.Conversations = append(result.Conversations, Conversation{
			ID:         raw.ID,
			Title:      title,
			CreateTime: unixTime(raw.CreateTime),
			UpdateTime: unixTime(raw.UpdateTime),
			ModelSlug:  raw.DefaultModelSlug,
			IsArchived: raw.IsArchived,
			IsStarred:  raw.IsStarred,
			GizmoID:    raw.GizmoID,
			Messages:   msgs,
		})
	}

	// Newest conversations first.
	sort.SliceStable(result.Conversations, func(i, j int) bool {
		return result.Conversations[i].CreateTime.After(result.Conversations[j].CreateTime)
	})

	return result, nil
}

// flattenMapping walks the per-conversation node forest depth-first from
// the root and extracts messages in sibling order. The walk is iterative
// with a visited set, so malformed graphs with cycles or dangling child
// references cannot loop or crash. A missing root yields zero messages.
func flattenMapping(mapping map[string]rawNode) ([]Message, int) {
	var messages []Message
	skipped := 0

	// Root heuristic: parent is null, or the node id contains "root".
	// Exports are not uniform, so both must be checked. Keys are scanned
	// in sorted order so the same bytes always pick the same root.
	ids := make([]string, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rootID := ""
	for _, id := range ids {
		node := mapping[id]
		if node.Parent == nil || strings.Contains(id, "root") {
			rootID = id
			break
		}
	}
	if rootID == "" {
		return messages, skipped
	}

	visited := make(map[string]bool, len(mapping))
	stack := []string{rootID}

	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[nodeID] {
			continue
		}
		visited[nodeID] = true

		node, ok := mapping[nodeID]
		if !ok {
			continue
		}

		if node.Message != nil {
			if msg := extractMessage(node.Message); msg != nil {
				messages = append(messages, *msg)
			} else {
				skipped++
			}
		}

		// Push children in reverse so siblings pop in order.
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}

	// Chronological order; messages without timestamps sort first.
	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i].CreateTime, messages[j].CreateTime
		if a == nil && b == nil {
			return false
		}
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})

	return messages, skipped
}

// extractMessage returns nil for system messages and messages with no
// extractable text; callers tally those as skipped.
func extractMessage(raw *rawMessage) *Message {
	if raw.Author.Role == "system" {
		return nil
	}

	content := extractTextContent(raw.Content.Parts)
	if content == "" {
		return nil
	}

	msg := &Message{
		ID:          raw.ID,
		Role:        raw.Author.Role,
		ContentType: raw.Content.ContentType,
		Content:     content,
		ModelSlug:   raw.Metadata.ModelSlug,
	}
	if raw.CreateTime != nil {
		t := unixTime(*raw.CreateTime)
		msg.CreateTime = &t
	}
	return msg
}

// extractTextContent joins string parts and the text field of multimodal
// object parts with newlines.
func extractTextContent(parts []json.RawMessage) string {
	var texts []string
	for _, part := range parts {
		var s string
		if err := json.Unmarshal(part, &s); err == nil {
			if t := sanitizeText(s); t != "" {
				texts = append(texts, t)
			}
			continue
		}
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(part, &obj); err == nil && obj.Text != "" {
			if t := sanitizeText(obj.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	return strings.Join(texts, "\n")
}

// sanitizeText strips control characters (keeping newlines, tabs and
// carriage returns) and caps the message length to bound memory on
// pathological inputs.
func sanitizeText(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, text)

	runes := []rune(cleaned)
	if len(runes) > maxMessageRunes {
		return string(runes[:maxMessageRunes])
	}
	return cleaned
}

func unixTime(sec float64) time.Time {
	s := int64(sec)
	ns := int64((sec - float64(s)) * 1e9)
	return time.Unix(s, ns).UTC()
}
