package chatcontext

import "strings"

// DefaultContextWindow 未知模型的上下文窗口
const DefaultContextWindow = 128000

// ContextWindow 模型的最大上下文 token
func ContextWindow(model string) int {
	switch {
	case model == "gpt-3.5-turbo":
		return 16385
	case strings.HasPrefix(model, "claude-"):
		return 200000
	default:
		return DefaultContextWindow
	}
}
