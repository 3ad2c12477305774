package openai

import (
	"context"

	"aisuite/internal/ai"
)

// CompletionService 单轮文本补全，instruct 模型走 completions 接口
type CompletionService struct {
	client *Client
}

// NewCompletionService 创建补全服务
func NewCompletionService(client *Client) *CompletionService {
	return &CompletionService{client: client}
}

func (s *CompletionService) SupportsModel(model ai.Model) bool {
	return textModels.Contains(model)
}

func (s *CompletionService) Models() []ai.Model {
	return textModels
}

func (s *CompletionService) GenerateCompletion(ctx context.Context, model ai.Model, params ai.Params) (*ai.Stream, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}
	prompt, err := params.Prompt()
	if err != nil {
		return nil, err
	}

	if model == instructModel {
		return s.client.streamInstruct(ctx, model, prompt, params)
	}
	return s.client.streamChat(ctx, model, []chatMessage{
		{Role: "user", Content: prompt},
	}, params, s.client.tokens.Count(prompt))
}

// CodeCompletionService 代码补全
type CodeCompletionService struct {
	client *Client
}

// NewCodeCompletionService 创建代码补全服务
func NewCodeCompletionService(client *Client) *CodeCompletionService {
	return &CodeCompletionService{client: client}
}

func (s *CodeCompletionService) SupportsModel(model ai.Model) bool {
	return textModels.Contains(model)
}

func (s *CodeCompletionService) Models() []ai.Model {
	return textModels
}

func (s *CodeCompletionService) GenerateCodeCompletion(ctx context.Context, model ai.Model, prompt, language string) (*ai.Stream, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}
	if prompt == "" {
		return nil, ai.NewDomainError("prompt is required", ai.ErrInvalidParameters)
	}

	expert := "You're " + language + " programming language expert."
	if model == instructModel {
		return s.client.streamInstruct(ctx, model, expert+" "+prompt, nil)
	}
	return s.client.streamChat(ctx, model, []chatMessage{
		{Role: "system", Content: expert},
		{Role: "user", Content: prompt},
	}, nil, s.client.tokens.Count(prompt))
}
