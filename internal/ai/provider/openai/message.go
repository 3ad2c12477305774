package openai

import (
	"context"

	"aisuite/internal/ai"
	"aisuite/internal/ai/chatcontext"
	"aisuite/internal/model/conversation"
)

// MessageService 基于 chat completions 的对话生成
type MessageService struct {
	client  *Client
	builder *chatcontext.Builder
}

// NewMessageService 创建对话生成服务
func NewMessageService(client *Client, builder *chatcontext.Builder) *MessageService {
	return &MessageService{client: client, builder: builder}
}

func (s *MessageService) SupportsModel(model ai.Model) bool {
	return chatModels.Contains(model)
}

func (s *MessageService) Models() []ai.Model {
	return chatModels
}

// GenerateMessage 以 msg 为叶子回溯上下文并流式生成回复
func (s *MessageService) GenerateMessage(ctx context.Context, model ai.Model, msg *conversation.Message) (*ai.Stream, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}

	built := s.builder.Build(ctx, msg, chatcontext.Options{
		Dialect:          chatcontext.DialectOpenAI,
		MaxContextTokens: chatcontext.ContextWindow(model.String()),
	})

	return s.client.streamChat(ctx, model, toChatMessages(built), nil, built.InputTokens)
}

// toChatMessages 指令作为首个 system 轮，含图片的轮使用多段 content
func toChatMessages(built *chatcontext.Context) []chatMessage {
	messages := make([]chatMessage, 0, len(built.Turns)+1)
	if built.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: built.System})
	}

	for _, turn := range built.Turns {
		if !turn.HasImage() {
			messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Text()})
			continue
		}

		parts := make([]contentPart, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			switch p.Type {
			case chatcontext.PartImage:
				parts = append(parts, contentPart{
					Type:     "image_url",
					ImageURL: &imageURL{URL: "data:" + p.MediaType + ";base64," + p.Data},
				})
			case chatcontext.PartText:
				parts = append(parts, contentPart{Type: "text", Text: p.Text})
			}
		}
		messages = append(messages, chatMessage{Role: turn.Role, Content: parts})
	}
	return messages
}
