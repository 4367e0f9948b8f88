package services

import (
	"testing"

	"github.com/drujensen/aibrowser/internal/domain/entities"

	"github.com/stretchr/testify/assert"
)

func oneTokenEach(entities.Message) int { return 1 }

func toolTurn(id string) []entities.Message {
	return []entities.Message{
		*entities.NewAIMessage("", entities.ToolCall{ID: id, Name: "browser_navigate"}),
		*entities.NewToolMessage(id, "browser_navigate", "ok", nil),
	}
}

func TestHistoryWindow_Unlimited(t *testing.T) {
	history := []entities.Message{*entities.NewSystemMessage("s"), *entities.NewHumanMessage("q")}
	history = append(history, toolTurn("c1")...)

	window := NewHistoryWindow(0, oneTokenEach)
	assert.Len(t, window.Apply(history), len(history))

	var nilWindow *HistoryWindow
	assert.Len(t, nilWindow.Apply(history), len(history))
}

func TestHistoryWindow_KeepsSystemAndRecentTail(t *testing.T) {
	history := []entities.Message{*entities.NewSystemMessage("s"), *entities.NewHumanMessage("q")}
	history = append(history, toolTurn("c1")...)
	history = append(history, toolTurn("c2")...)
	history = append(history, *entities.NewAIMessage("done"))

	// system + last tool turn + final answer
	window := NewHistoryWindow(4, oneTokenEach)
	got := window.Apply(history)

	assert.Len(t, got, 4)
	assert.Equal(t, entities.RoleSystem, got[0].Role)
	assert.Equal(t, "c2", got[1].ToolCalls[0].ID)
	assert.Equal(t, "c2", got[2].ToolCallID)
	assert.Equal(t, "done", got[3].Content)
}

func TestHistoryWindow_NeverOrphansToolResults(t *testing.T) {
	history := []entities.Message{*entities.NewSystemMessage("s"), *entities.NewHumanMessage("q")}
	history = append(history, toolTurn("c1")...)

	// Budget fits only the tool message; the split must move back to its AI call.
	window := NewHistoryWindow(2, oneTokenEach)
	got := window.Apply(history)

	for i, msg := range got {
		if msg.Role == entities.RoleTool {
			assert.True(t, i > 0 && got[i-1].HasToolCalls(), "tool result without preceding call")
		}
	}
}

func TestIsSafeSplit(t *testing.T) {
	msgs := []entities.Message{*entities.NewHumanMessage("q")}
	msgs = append(msgs, toolTurn("c1")...)

	assert.True(t, isSafeSplit(msgs, 0))
	assert.True(t, isSafeSplit(msgs, 1))
	assert.False(t, isSafeSplit(msgs, 2))
	assert.True(t, isSafeSplit(msgs, 3))
}
