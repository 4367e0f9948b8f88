package entities

// ToolResult is what a tool invocation returns before it is turned into a
// Tool message. The artifact is transient: only the screenshot sink reads it.
type ToolResult struct {
	CallID   string         `json:"call_id"`
	Content  string         `json:"content"`
	Artifact []ContentBlock `json:"artifact,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`
}

func (r *ToolResult) Message(toolName string) *Message {
	msg := NewToolMessage(r.CallID, toolName, r.Content, r.Artifact)
	msg.IsError = r.IsError
	return msg
}

// FirstImage returns the first image block of the artifact, if any.
func (r *ToolResult) FirstImage() (ContentBlock, bool) {
	for _, block := range r.Artifact {
		if block.Type == BlockImage {
			return block, true
		}
	}
	return ContentBlock{}, false
}
