package openai

import (
	"context"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
)

// TitleService 根据对话内容生成标题
type TitleService struct {
	client *Client
}

// NewTitleService 创建标题服务
func NewTitleService(client *Client) *TitleService {
	return &TitleService{client: client}
}

func (s *TitleService) SupportsModel(model ai.Model) bool {
	return textModels.Contains(model)
}

func (s *TitleService) Models() []ai.Model {
	return textModels
}

// GenerateTitle 内容为空时直接返回 Untitled，不请求厂商
func (s *TitleService) GenerateTitle(ctx context.Context, content string, model ai.Model) (*ai.TitleResult, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}

	seed := ai.TitleSeed(content)
	if seed == "" {
		return &ai.TitleResult{Title: ai.UntitledTitle, Cost: cost.Zero}, nil
	}

	var resp chunk
	var err error
	if model == instructModel {
		err = s.client.transport.DoJSON(ctx, "/v1/completions", instructRequest{
			Model:     model.String(),
			Prompt:    ai.TitleInstructPrompt(seed),
			MaxTokens: 64,
		}, &resp)
	} else {
		err = s.client.transport.DoJSON(ctx, "/v1/chat/completions", chatRequest{
			Model: model.String(),
			Messages: []chatMessage{
				{Role: "system", Content: ai.TitleSystemPrompt},
				{Role: "user", Content: ai.TitleUserPrompt(seed)},
				{Role: "assistant", Content: ai.TitleAssistantPrefill},
			},
			MaxTokens: 64,
		}, &resp)
	}
	if err != nil {
		return nil, err
	}

	amount := cost.Zero
	if resp.Usage != nil {
		amount = s.client.tokenCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return &ai.TitleResult{Title: ai.NormalizeTitle(resp.text()), Cost: amount}, nil
}
