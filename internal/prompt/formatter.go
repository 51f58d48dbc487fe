// Package prompt formats conversations into the ChatML framing the model's
// tokenizer expects, and builds the tool-catalog system prompt the agent
// coordinator prepends when a conversation lacks one.
package prompt

import (
	"strings"

	"modeld/pkg/types"
)

const (
	imStart = "<|im_start|>"
	imEnd   = "<|im_end|>\n"
)

// FormatChatML serializes messages into ChatML framing, one envelope per
// message, followed by a primed assistant turn so decode can begin. No
// content escaping is applied; the model's tokenizer handles marker tokens.
func FormatChatML(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(imStart)
		b.WriteString(string(m.Role))
		b.WriteByte('\n')
		b.WriteString(m.Content)
		b.WriteString(imEnd)
	}
	b.WriteString(imStart)
	b.WriteString(string(types.RoleAssistant))
	b.WriteByte('\n')
	return b.String()
}
