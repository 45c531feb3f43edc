package convo

import (
	"encoding/json"
	"strings"
	"time"
)

// chatJSON handles the common JSON export shape: a top-level array (or a
// single object) of conversations, each with a message list. Both
// {"role","content"} and {"sender","text"} message field spellings appear
// in the wild; this parser accepts either.
type chatJSON struct{}

func (chatJSON) Name() string { return "chat-json" }

type rawConversation struct {
	ID        string       `json:"id"`
	UUID      string       `json:"uuid"`
	Title     string       `json:"title"`
	Name      string       `json:"name"`
	CreatedAt string       `json:"created_at"`
	Messages  []rawMessage `json:"messages"`
	Mapping   []rawMessage `json:"chat_messages"`
}

type rawMessage struct {
	Role      string `json:"role"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

func (chatJSON) Detect(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return false
	}
	if trimmed[0] != '[' && trimmed[0] != '{' {
		return false
	}
	var probe []rawConversation
	if trimmed[0] == '{' {
		var single rawConversation
		if err := json.Unmarshal(data, &single); err != nil {
			return false
		}
		probe = []rawConversation{single}
	} else if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	for _, conv := range probe {
		if len(conv.Messages) > 0 || len(conv.Mapping) > 0 {
			return true
		}
	}
	return false
}

func (chatJSON) Parse(data []byte) ([]Conversation, error) {
	trimmed := strings.TrimSpace(string(data))

	var raw []rawConversation
	if strings.HasPrefix(trimmed, "{") {
		var single rawConversation
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, err
		}
		raw = []rawConversation{single}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(raw))
	for _, conv := range raw {
		messages := conv.Messages
		if len(messages) == 0 {
			messages = conv.Mapping
		}

		parsed := Conversation{
			ExternalID: firstNonEmpty(conv.ID, conv.UUID),
			Title:      firstNonEmpty(conv.Title, conv.Name),
			StartedAt:  parseTimestamp(conv.CreatedAt),
		}
		for i, message := range messages {
			content := firstNonEmpty(message.Content, message.Text)
			if strings.TrimSpace(content) == "" {
				continue
			}
			parsed.Messages = append(parsed.Messages, Message{
				Seq:     i,
				Role:    normalizeRole(firstNonEmpty(message.Role, message.Sender)),
				Content: content,
				SentAt:  parseTimestamp(message.CreatedAt),
			})
		}
		if len(parsed.Messages) == 0 {
			continue
		}
		conversations = append(conversations, parsed)
	}
	return conversations, nil
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human":
		return "user"
	case "assistant", "ai", "model":
		return "assistant"
	case "system":
		return "system"
	default:
		return "unknown"
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
