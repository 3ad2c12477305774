package ai

import (
	"context"
	"io"

	"aisuite/internal/ai/cost"
	"aisuite/internal/model/conversation"
)

// Service 所有适配器的公共约定
type Service interface {
	// SupportsModel 纯成员判断
	SupportsModel(model Model) bool
	// Models 可供选择的模型
	Models() []Model
}

// MessageService 对话消息生成
type MessageService interface {
	Service
	// GenerateMessage 以 msg 为叶子构建上下文并流式生成回复
	GenerateMessage(ctx context.Context, model Model, msg *conversation.Message) (*Stream, error)
}

// CompletionService 单轮文本补全
type CompletionService interface {
	Service
	GenerateCompletion(ctx context.Context, model Model, params Params) (*Stream, error)
}

// CodeCompletionService 代码补全
type CodeCompletionService interface {
	Service
	GenerateCodeCompletion(ctx context.Context, model Model, prompt, language string) (*Stream, error)
}

// ImageRequest 图片生成请求
type ImageRequest struct {
	Width  int
	Height int
	Params Params // 必须包含 prompt
}

// ImageResult 图片生成结果
type ImageResult struct {
	Image       []byte
	ContentType string
	Cost        cost.Count
	Params      Params // 规范化后的参数回显
}

// ImageService 图片生成
type ImageService interface {
	Service
	GenerateImage(ctx context.Context, model Model, req ImageRequest) (*ImageResult, error)
}

// Voice 语音合成所用的声音
type Voice struct {
	ExternalID string `json:"external_id"`
	Model      Model  `json:"model"`
}

// SpeechResult 语音合成结果
type SpeechResult struct {
	Audio       []byte
	ContentType string
	Cost        cost.Count
	Params      Params
}

// SpeechService 语音合成
type SpeechService interface {
	Service
	GenerateSpeech(ctx context.Context, voice Voice, params Params) (*SpeechResult, error)
}

// Segment 带时间戳的转写片段
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult 转写结果
type TranscriptionResult struct {
	Text     string
	Language string
	Duration float64
	Segments []Segment
	Cost     cost.Count
}

// TranscriptionService 语音转写
type TranscriptionService interface {
	Service
	GenerateTranscription(ctx context.Context, model Model, audio io.Reader, filename string, params Params) (*TranscriptionResult, error)
}

// TitleResult 标题生成结果
type TitleResult struct {
	Title string
	Cost  cost.Count
}

// TitleService 标题生成
type TitleService interface {
	Service
	GenerateTitle(ctx context.Context, content string, model Model) (*TitleResult, error)
}
