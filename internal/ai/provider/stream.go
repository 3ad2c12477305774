package provider

import (
	"errors"
	"io"

	"aisuite/internal/ai"
	"aisuite/internal/ai/sse"
)

// EventHandler 处理一个 SSE 事件，返回要下发的文本，空串表示不下发
type EventHandler func(ev sse.Event) (string, error)

// EventSource 将厂商 SSE 响应体转换为 ai.TokenSource
type EventSource struct {
	provider string
	body     io.ReadCloser
	dec      *sse.Decoder
	handle   EventHandler
	settle   func() ai.Result
}

// NewEventSource 创建事件流，settle 在正常结束后计算用量与费用
func NewEventSource(provider string, body io.ReadCloser, handle EventHandler, settle func() ai.Result) *EventSource {
	return &EventSource{
		provider: provider,
		body:     body,
		dec:      sse.NewDecoder(body),
		handle:   handle,
		settle:   settle,
	}
}

// Recv 读取下一个非空 token
func (s *EventSource) Recv() (ai.Token, error) {
	for {
		ev, err := s.dec.Next()
		if err != nil {
			var streamErr *sse.StreamError
			if errors.As(err, &streamErr) {
				return ai.Token{}, ai.NewApiError(s.provider, 0, streamErr.Error())
			}
			return ai.Token{}, err
		}

		text, err := s.handle(ev)
		if err != nil {
			return ai.Token{}, err
		}
		if text != "" {
			return ai.Token{Content: text}, nil
		}
	}
}

// Result 正常结束后的用量与费用
func (s *EventSource) Result() ai.Result {
	return s.settle()
}

// Close 关闭响应体
func (s *EventSource) Close() error {
	return s.body.Close()
}
