package convo_test

import (
	"testing"

	"chimera/internal/convo"
)

func TestParseTopLevelArray(t *testing.T) {
	data := []byte(`[
        {
            "uuid": "abc-123",
            "name": "Debugging session",
            "created_at": "2026-03-14T10:00:00Z",
            "chat_messages": [
                {"sender": "human", "text": "Why does the build fail?"},
                {"sender": "assistant", "text": "The import path is wrong.", "created_at": "2026-03-14T10:01:30Z"}
            ]
        }
    ]`)

	conversations, format, err := convo.NewRegistry().Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if format != "chat-json" {
		t.Fatalf("unexpected format: %s", format)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(conversations))
	}

	conv := conversations[0]
	if conv.ExternalID != "abc-123" || conv.Title != "Debugging session" {
		t.Fatalf("identity fields wrong: %#v", conv)
	}
	if conv.StartedAt == nil || conv.StartedAt.Year() != 2026 {
		t.Fatalf("started_at not parsed: %#v", conv.StartedAt)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != "user" || conv.Messages[1].Role != "assistant" {
		t.Fatalf("roles not normalized: %s, %s", conv.Messages[0].Role, conv.Messages[1].Role)
	}
	if conv.Messages[1].SentAt == nil {
		t.Fatal("message timestamp not parsed")
	}
}

func TestParseSingleObject(t *testing.T) {
	data := []byte(`{
        "id": "conv-1",
        "title": "Quick question",
        "messages": [
            {"role": "user", "content": "hi"},
            {"role": "ai", "content": "hello"}
        ]
    }`)

	conversations, _, err := convo.NewRegistry().Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(conversations) != 1 || conversations[0].ExternalID != "conv-1" {
		t.Fatalf("unexpected conversations: %#v", conversations)
	}
	if conversations[0].Messages[1].Role != "assistant" {
		t.Fatalf("ai role not normalized: %s", conversations[0].Messages[1].Role)
	}
}

func TestParseSkipsEmptyMessages(t *testing.T) {
	data := []byte(`[{
        "id": "conv-2",
        "title": "Sparse",
        "messages": [
            {"role": "user", "content": "   "},
            {"role": "assistant", "content": "real content"},
            {"role": "user", "content": ""}
        ]
    }]`)

	conversations, _, err := convo.NewRegistry().Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(conversations) != 1 || len(conversations[0].Messages) != 1 {
		t.Fatalf("blank messages should be dropped: %#v", conversations)
	}
	if conversations[0].Messages[0].Content != "real content" {
		t.Fatalf("wrong message kept: %#v", conversations[0].Messages[0])
	}
}

func TestParseDropsConversationsWithoutMessages(t *testing.T) {
	data := []byte(`[
        {"id": "empty", "title": "Nothing here", "messages": []},
        {"id": "full", "title": "Something", "messages": [{"role": "user", "content": "x"}]}
    ]`)

	conversations, _, err := convo.NewRegistry().Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(conversations) != 1 || conversations[0].ExternalID != "full" {
		t.Fatalf("empty conversation should be dropped: %#v", conversations)
	}
}

func TestParseUnrecognizedFormat(t *testing.T) {
	for _, data := range [][]byte{
		[]byte(""),
		[]byte("just some prose"),
		[]byte(`{"totally": "unrelated"}`),
		[]byte(`[1, 2, 3]`),
	} {
		if _, _, err := convo.NewRegistry().Parse(data); err == nil {
			t.Fatalf("expected %q to be rejected", data)
		}
	}
}

func TestParseUnknownRole(t *testing.T) {
	data := []byte(`[{
        "id": "conv-3",
        "messages": [{"role": "tool", "content": "output"}]
    }]`)

	conversations, _, err := convo.NewRegistry().Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if conversations[0].Messages[0].Role != "unknown" {
		t.Fatalf("unexpected role: %s", conversations[0].Messages[0].Role)
	}
}
