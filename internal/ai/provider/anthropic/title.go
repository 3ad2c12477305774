package anthropic

import (
	"context"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
)

// TitleService Claude 标题生成
type TitleService struct {
	client *Client
}

// NewTitleService 创建标题服务
func NewTitleService(client *Client) *TitleService {
	return &TitleService{client: client}
}

func (s *TitleService) SupportsModel(model ai.Model) bool {
	return models.Contains(model)
}

func (s *TitleService) Models() []ai.Model {
	return models
}

func (s *TitleService) GenerateTitle(ctx context.Context, content string, model ai.Model) (*ai.TitleResult, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}

	seed := ai.TitleSeed(content)
	if seed == "" {
		return &ai.TitleResult{Title: ai.UntitledTitle, Cost: cost.Zero}, nil
	}

	var resp messagesResponse
	err := s.client.transport.DoJSON(ctx, "/v1/messages", messagesRequest{
		Model: model.String(),
		Messages: []message{
			{Role: "user", Content: seed},
			{Role: "assistant", Content: ai.TitleAssistantPrefill},
		},
		System:    ai.TitleSystemPrompt,
		MaxTokens: titleMaxTokens,
	}, &resp)
	if err != nil {
		return nil, err
	}

	title := ""
	if len(resp.Content) > 0 {
		title = resp.Content[0].Text
	}
	return &ai.TitleResult{
		Title: ai.NormalizeTitle(title),
		Cost:  s.client.tokenCost(model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}, nil
}
