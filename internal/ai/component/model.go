package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

const (
	// DefaultArkBaseURL 火山方舟默认地址
	DefaultArkBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	// DefaultAzureAPIVersion Azure OpenAI 默认 API 版本
	DefaultAzureAPIVersion = "2024-06-01"
)

// ChatModelConfig 创建单个模型实例所需的参数
type ChatModelConfig struct {
	Provider    string // ark 或 azure
	Model       string // ark 为接入点或模型名，azure 为部署名
	APIKey      string
	BaseURL     string
	APIVersion  string // 仅 azure
	MaxTokens   int
	Temperature float64
}

// NewChatModel 按 Provider 创建 eino ChatModel
func NewChatModel(ctx context.Context, cfg ChatModelConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s api key is required", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s model is required", cfg.Provider)
	}

	switch cfg.Provider {
	case "azure":
		return newAzureChatModel(ctx, cfg)
	case "ark":
		return newArkChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported chat model provider: %s", cfg.Provider)
	}
}

// newAzureChatModel 创建 Azure OpenAI ChatModel
func newAzureChatModel(ctx context.Context, cfg ChatModelConfig) (model.BaseChatModel, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAzureAPIVersion
	}

	modelCfg := &openai.ChatModelConfig{
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		APIVersion: apiVersion,
		ByAzure:    true,
	}
	if cfg.Temperature > 0 {
		temp := float32(cfg.Temperature)
		modelCfg.Temperature = &temp
	}
	if cfg.MaxTokens > 0 {
		modelCfg.MaxTokens = &cfg.MaxTokens
	}

	return openai.NewChatModel(ctx, modelCfg)
}

// newArkChatModel 创建 Ark ChatModel
func newArkChatModel(ctx context.Context, cfg ChatModelConfig) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultArkBaseURL
	}

	modelCfg := &arkext.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
	}
	if cfg.Temperature > 0 {
		temp := float32(cfg.Temperature)
		modelCfg.Temperature = &temp
	}
	if cfg.MaxTokens > 0 {
		modelCfg.MaxTokens = &cfg.MaxTokens
	}

	return arkext.NewChatModel(ctx, modelCfg)
}
