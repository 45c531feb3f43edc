// Package convo parses AI-conversation export files. Formats register a
// detector and a parser; the registry built at startup picks the first
// format whose signature matches the data.
package convo

import (
	"fmt"
	"time"
)

// Conversation is one parsed conversation thread.
type Conversation struct {
	ExternalID string
	Title      string
	StartedAt  *time.Time
	Messages   []Message
}

// Message is one turn in a conversation.
type Message struct {
	Seq     int
	Role    string
	Content string
	SentAt  *time.Time
}

// Format detects and parses one export layout.
type Format interface {
	Name() string
	Detect(data []byte) bool
	Parse(data []byte) ([]Conversation, error)
}

// Registry holds formats in detection order.
type Registry struct {
	formats []Format
}

// NewRegistry returns a registry preloaded with the built-in formats.
func NewRegistry() *Registry {
	return &Registry{formats: []Format{
		&chatJSON{},
	}}
}

// Register appends a format.
func (r *Registry) Register(format Format) {
	r.formats = append(r.formats, format)
}

// Parse finds the matching format and parses the data.
func (r *Registry) Parse(data []byte) ([]Conversation, string, error) {
	for _, format := range r.formats {
		if format.Detect(data) {
			conversations, err := format.Parse(data)
			if err != nil {
				return nil, format.Name(), fmt.Errorf("parse %s export: %w", format.Name(), err)
			}
			return conversations, format.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("unrecognized conversation export format")
}
