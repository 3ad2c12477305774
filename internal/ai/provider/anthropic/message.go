package anthropic

import (
	"context"

	"aisuite/internal/ai"
	"aisuite/internal/ai/chatcontext"
	"aisuite/internal/model/conversation"
)

// MessageService Claude 对话生成
type MessageService struct {
	client  *Client
	builder *chatcontext.Builder
}

// NewMessageService 创建对话生成服务
func NewMessageService(client *Client, builder *chatcontext.Builder) *MessageService {
	return &MessageService{client: client, builder: builder}
}

func (s *MessageService) SupportsModel(model ai.Model) bool {
	return models.Contains(model)
}

func (s *MessageService) Models() []ai.Model {
	return models
}

func (s *MessageService) GenerateMessage(ctx context.Context, model ai.Model, msg *conversation.Message) (*ai.Stream, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}

	built := s.builder.Build(ctx, msg, chatcontext.Options{
		Dialect:          chatcontext.DialectAnthropic,
		MaxContextTokens: chatcontext.ContextWindow(model.String()),
	})

	return s.client.stream(ctx, model, messagesRequest{
		Messages: toMessages(built),
		System:   built.System,
	})
}

func toMessages(built *chatcontext.Context) []message {
	out := make([]message, 0, len(built.Turns))
	for _, turn := range built.Turns {
		if !turn.HasImage() {
			out = append(out, message{Role: turn.Role, Content: turn.Text()})
			continue
		}

		blocks := make([]contentBlock, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			switch p.Type {
			case chatcontext.PartImage:
				blocks = append(blocks, contentBlock{
					Type:   "image",
					Source: &imageSource{Type: "base64", MediaType: p.MediaType, Data: p.Data},
				})
			case chatcontext.PartText:
				blocks = append(blocks, contentBlock{Type: "text", Text: p.Text})
			}
		}
		out = append(out, message{Role: turn.Role, Content: blocks})
	}
	return out
}

// CompletionService Claude 单轮补全
type CompletionService struct {
	client *Client
}

// NewCompletionService 创建补全服务
func NewCompletionService(client *Client) *CompletionService {
	return &CompletionService{client: client}
}

func (s *CompletionService) SupportsModel(model ai.Model) bool {
	return models.Contains(model)
}

func (s *CompletionService) Models() []ai.Model {
	return models
}

func (s *CompletionService) GenerateCompletion(ctx context.Context, model ai.Model, params ai.Params) (*ai.Stream, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}
	prompt, err := params.Prompt()
	if err != nil {
		return nil, err
	}

	return s.client.stream(ctx, model, messagesRequest{
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: temperature(params),
	})
}
