package window

import (
	"strings"

	"github.com/hupe1980/recallmesh/core"
)

// Role prefixes used by BufferString.
const (
	HumanPrefix  = "Human"
	AIPrefix     = "AI"
	ToolPrefix   = "Tool"
	SystemPrefix = "System"
)

// BufferString renders messages one per line as "<Prefix>: <text>". Tool
// invocations requested by the assistant are rendered as name(arguments) so
// saved facts stay visible to the recall query.
func BufferString(messages []core.Content) string {
	lines := make([]string, 0, len(messages))

	for _, msg := range messages {
		var sb strings.Builder

		sb.WriteString(prefix(msg.Role))
		sb.WriteString(": ")

		parts := make([]string, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch v := p.(type) {
			case core.TextPart:
				if v.Text != "" {
					parts = append(parts, v.Text)
				}
			case core.FunctionCallPart:
				parts = append(parts, v.FunctionCall.Name+"("+v.FunctionCall.Arguments+")")
			case core.FunctionResponsePart:
				parts = append(parts, v.FunctionResponse.Text())
			}
		}

		sb.WriteString(strings.Join(parts, " "))
		lines = append(lines, sb.String())
	}

	return strings.Join(lines, "\n")
}

func prefix(role string) string {
	switch role {
	case core.RoleUser:
		return HumanPrefix
	case core.RoleAssistant:
		return AIPrefix
	case core.RoleTool:
		return ToolPrefix
	case core.RoleSystem:
		return SystemPrefix
	default:
		return role
	}
}
