package prompt

import (
	"fmt"
	"strings"

	"modeld/internal/tool"
)

// DefaultIdentity is the assistant identity folded into the system prompt
// when the caller does not override it.
const DefaultIdentity = "You are a helpful, on-device AI assistant."

const toolProtocol = `You have access to tools. To call a tool, emit a single marker block of the form:
<tool_call>{"name":"<tool_name>","arguments":{...}}</tool_call>
Only emit a tool_call block when you need a tool; otherwise reply normally. Wait for the tool's result before continuing your answer.`

// BuildSystemPrompt assembles identity + persona + a catalog of registered
// tools (name, description, canonical schema) + the tool-call protocol
// paragraph, in that order.
func BuildSystemPrompt(identity, persona string, registry *tool.Registry) string {
	var b strings.Builder
	if strings.TrimSpace(identity) == "" {
		identity = DefaultIdentity
	}
	b.WriteString(identity)
	if strings.TrimSpace(persona) != "" {
		b.WriteByte('\n')
		b.WriteString(persona)
	}

	tools := registry.List()
	if len(tools) > 0 {
		b.WriteString("\n\nAvailable tools:\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s: %s\n  schema: %s\n", t.Name(), t.Description(), tool.CanonicalJSON(t.ParametersSchema()))
		}
	}

	b.WriteByte('\n')
	b.WriteString(toolProtocol)
	return b.String()
}
