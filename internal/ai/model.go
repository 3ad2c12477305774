package ai

import (
	"fmt"
	"strconv"
	"strings"
)

// Model 厂商模型标识，按字符串比较
type Model string

func (m Model) String() string {
	return string(m)
}

// Capability 生成能力
type Capability string

const (
	CapabilityMessage        Capability = "message"
	CapabilityCompletion     Capability = "completion"
	CapabilityCodeCompletion Capability = "code_completion"
	CapabilityImage          Capability = "image"
	CapabilitySpeech         Capability = "speech"
	CapabilityTranscription  Capability = "transcription"
	CapabilityTitle          Capability = "title"
)

// Capabilities 所有能力，按展示顺序
var Capabilities = []Capability{
	CapabilityMessage,
	CapabilityCompletion,
	CapabilityCodeCompletion,
	CapabilityImage,
	CapabilitySpeech,
	CapabilityTranscription,
	CapabilityTitle,
}

// Params 生成参数
type Params map[string]any

// String 读取字符串参数
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Float 读取数值参数，兼容 JSON 数字与数字字符串
func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Prompt 必填的 prompt 参数
func (p Params) Prompt() (string, error) {
	prompt := strings.TrimSpace(p.String("prompt"))
	if prompt == "" {
		return "", NewDomainError("prompt is required", ErrInvalidParameters)
	}
	return prompt, nil
}

// Clone 浅拷贝
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// SupportList 静态模型列表
type SupportList []Model

// Contains 成员判断
func (l SupportList) Contains(model Model) bool {
	for _, m := range l {
		if m == model {
			return true
		}
	}
	return false
}
