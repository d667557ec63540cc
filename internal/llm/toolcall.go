package llm

import "encoding/json"

// ToolCall is a structured tool invocation request parsed from model output.
type ToolCall struct {
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments"`
	FinalAnswer string         `json:"final_answer"`
}

// ParseToolCall interprets raw model output. Anything that is not a JSON
// object with a non-empty "tool" field is a plain final answer.
func ParseToolCall(raw string) (*ToolCall, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, false
	}
	if _, ok := fields["tool"]; !ok {
		return nil, false
	}
	var call ToolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		return nil, false
	}
	if call.Tool == "" {
		return nil, false
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return &call, true
}
