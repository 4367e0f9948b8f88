package entities

import "time"

// Telemetry is the timing summary of one loop run.
type Telemetry struct {
	ThreadID     string        `json:"thread_id"`
	Iterations   int           `json:"iterations"`
	ModelCalls   int           `json:"model_calls"`
	ToolCalls    int           `json:"tool_calls"`
	ToolFailures int           `json:"tool_failures"`
	ModelLatency time.Duration `json:"model_latency"`
	ToolLatency  time.Duration `json:"tool_latency"`
	Total        time.Duration `json:"total"`
	Screenshots  []string      `json:"screenshots,omitempty"`
	Truncated    bool          `json:"truncated,omitempty"`
}
