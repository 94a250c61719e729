package chat

import (
	"fmt"
	"testing"

	"storechat/model"
)

func TestAppendMessageTruncation(t *testing.T) {
	s := &Session{ID: "s1"}
	s.appendMessage(model.NewSystemMessage("persona"), 5)

	for i := 0; i < 10; i++ {
		s.appendMessage(model.NewUserMessage(fmt.Sprintf("question %d", i)), 5)
		s.appendMessage(model.NewAssistantMessage(fmt.Sprintf("answer %d", i)), 5)
	}

	if len(s.History) != 5 {
		t.Fatalf("history length = %d, want 5", len(s.History))
	}
	if s.History[0].Role != model.RoleSystem {
		t.Error("system message not kept at the head")
	}
	if got := s.History[len(s.History)-1].Content; got != "answer 9" {
		t.Errorf("latest message = %q, want the most recent answer", got)
	}
}

func TestAppendMessageNoTruncationUnderCap(t *testing.T) {
	s := &Session{ID: "s1"}
	s.appendMessage(model.NewUserMessage("hi"), 10)
	s.appendMessage(model.NewAssistantMessage("hello"), 10)

	if len(s.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(s.History))
	}
}

func TestAppendMessageUpdatesActivity(t *testing.T) {
	s := &Session{ID: "s1"}
	before := s.LastActivity
	s.appendMessage(model.NewUserMessage("hi"), 10)
	if !s.LastActivity.After(before) {
		t.Error("LastActivity not refreshed")
	}
}

func TestHasSystemPrompt(t *testing.T) {
	s := &Session{ID: "s1"}
	if s.hasSystemPrompt() {
		t.Error("empty session reports a system prompt")
	}
	s.appendMessage(model.NewSystemMessage("persona"), 10)
	if !s.hasSystemPrompt() {
		t.Error("system prompt not detected")
	}
}
