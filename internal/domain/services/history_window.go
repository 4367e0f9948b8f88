package services

import (
	"sync"

	"github.com/drujensen/aibrowser/internal/domain/entities"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter estimates the prompt size of one message.
type TokenCounter func(msg entities.Message) int

// TiktokenCounter counts content and tool call arguments with the gpt-4
// encoding. If the encoding cannot be loaded it falls back to a character
// based estimate.
func TiktokenCounter(logger *zap.Logger) TokenCounter {
	var (
		once sync.Once
		enc  *tiktoken.Tiktoken
	)
	return func(msg entities.Message) int {
		once.Do(func() {
			var err error
			enc, err = tiktoken.EncodingForModel("gpt-4")
			if err != nil {
				logger.Warn("Falling back to character token estimate", zap.Error(err))
				enc = nil
			}
		})

		text := msg.Content
		for _, tc := range msg.ToolCalls {
			text += tc.Name
			for k, v := range tc.Arguments {
				if s, ok := v.(string); ok {
					text += k + s
				}
			}
		}
		if enc == nil {
			return len(text)/4 + 1
		}
		return len(enc.Encode(text, nil, nil))
	}
}

// HistoryWindow selects what is sent to the model. With a zero budget the full
// history is used; otherwise the leading system messages are kept and the most
// recent messages that fit the budget follow, never separating an AI tool call
// from its Tool results. Stored history is not affected.
type HistoryWindow struct {
	maxTokens int
	count     TokenCounter
}

func NewHistoryWindow(maxTokens int, count TokenCounter) *HistoryWindow {
	return &HistoryWindow{maxTokens: maxTokens, count: count}
}

func (w *HistoryWindow) Apply(history []entities.Message) []entities.Message {
	if w == nil || w.maxTokens <= 0 || w.count == nil {
		return history
	}

	head := 0
	for head < len(history) && history[head].Role == entities.RoleSystem {
		head++
	}
	prefix := history[:head]
	rest := history[head:]

	budget := w.maxTokens
	for _, msg := range prefix {
		budget -= w.count(msg)
	}

	suffixTokens := make([]int, len(rest)+1)
	for i := len(rest) - 1; i >= 0; i-- {
		suffixTokens[i] = suffixTokens[i+1] + w.count(rest[i])
	}

	split := -1
	for i := 0; i < len(rest); i++ {
		if suffixTokens[i] <= budget && isSafeSplit(rest, i) {
			split = i
			break
		}
	}
	if split == -1 {
		// Nothing fits: keep the shortest safe tail.
		for i := len(rest) - 1; i >= 0; i-- {
			if isSafeSplit(rest, i) {
				split = i
				break
			}
		}
	}
	if split <= 0 {
		return history
	}

	out := make([]entities.Message, 0, len(prefix)+len(rest)-split)
	out = append(out, prefix...)
	out = append(out, rest[split:]...)
	return out
}

// isSafeSplit checks if splitting at 'split' avoids both orphaned responses and unfinished calls.
func isSafeSplit(messages []entities.Message, split int) bool {
	toolCallIDsBefore := make(map[string]struct{})
	for i := 0; i < split; i++ {
		msg := messages[i]
		if msg.Role == entities.RoleAI && len(msg.ToolCalls) > 0 {
			for _, tc := range msg.ToolCalls {
				toolCallIDsBefore[tc.ID] = struct{}{}
			}
		}
	}

	// Orphaned response: a tool result after the split answering a call before it.
	for i := split; i < len(messages); i++ {
		msg := messages[i]
		if msg.Role == entities.RoleTool {
			if _, ok := toolCallIDsBefore[msg.ToolCallID]; ok {
				return false
			}
		}
	}

	responseIDsBefore := make(map[string]struct{})
	for i := 0; i < split; i++ {
		if messages[i].Role == entities.RoleTool {
			responseIDsBefore[messages[i].ToolCallID] = struct{}{}
		}
	}

	// Unfinished call: a call before the split without its response before it.
	for callID := range toolCallIDsBefore {
		if _, ok := responseIDsBefore[callID]; !ok {
			return false
		}
	}

	return true
}
