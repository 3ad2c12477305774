package stabilityai

import (
	"context"
	"encoding/base64"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/ai/provider"
)

const (
	// DefaultBaseURL Stability AI API 地址
	DefaultBaseURL = "https://api.stability.ai"
	providerName   = "stabilityai"
	clientID       = "aisuite"
)

var models = ai.SupportList{"stable-diffusion-xl-1024-v1-0", "stable-diffusion-v1-6"}

// 透传给厂商的可选参数
var passthroughParams = []string{"sampler", "clip_guidance_preset", "style_preset"}

// Config Stability AI 配置
type Config struct {
	APIKey  string
	BaseURL string
	Version string // 客户端版本，写入 Stability-Client-Version
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type artifact struct {
	Base64       string `json:"base64"`
	Seed         int64  `json:"seed"`
	FinishReason string `json:"finishReason"`
}

type generationResponse struct {
	Artifacts []artifact `json:"artifacts"`
}

// ImageService Stable Diffusion 文生图
type ImageService struct {
	transport *provider.Transport
	calc      *cost.Calculator
}

// NewImageService 创建图片服务，doer 为空时使用默认 http.Client
func NewImageService(cfg Config, calc *cost.Calculator, doer provider.Doer) *ImageService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &ImageService{
		transport: provider.NewTransport(providerName, baseURL, map[string]string{
			"Authorization":            "Bearer " + cfg.APIKey,
			"Stability-Client-ID":      clientID,
			"Stability-Client-Version": version,
		}, doer),
		calc: calc,
	}
}

func (s *ImageService) SupportsModel(model ai.Model) bool {
	return models.Contains(model)
}

func (s *ImageService) Models() []ai.Model {
	return models
}

// GenerateImage 每张图按模型固定计费
func (s *ImageService) GenerateImage(ctx context.Context, model ai.Model, req ai.ImageRequest) (*ai.ImageResult, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}
	prompt, err := req.Params.Prompt()
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"text_prompts": []textPrompt{{Text: prompt, Weight: 1}},
		"samples":      1,
	}
	if negative := req.Params.String("negative_prompt"); negative != "" {
		body["text_prompts"] = []textPrompt{{Text: prompt, Weight: 1}, {Text: negative, Weight: -1}}
	}
	if req.Width > 0 {
		body["width"] = req.Width
	}
	if req.Height > 0 {
		body["height"] = req.Height
	}
	for _, key := range passthroughParams {
		if v := req.Params.String(key); v != "" {
			body[key] = v
		}
	}
	// 兼容旧参数名 style
	if v := req.Params.String("style"); v != "" {
		body["style_preset"] = v
	}

	var resp generationResponse
	if err := s.transport.DoJSON(ctx, "/v1/generation/"+model.String()+"/text-to-image", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Artifacts) == 0 || resp.Artifacts[0].Base64 == "" {
		return nil, ai.NewApiError(providerName, 0, "failed to generate image")
	}

	image, err := base64.StdEncoding.DecodeString(resp.Artifacts[0].Base64)
	if err != nil {
		return nil, ai.NewApiError(providerName, 0, "invalid image payload: "+err.Error())
	}

	params := req.Params.Clone()
	params["seed"] = resp.Artifacts[0].Seed
	return &ai.ImageResult{
		Image:       image,
		ContentType: "image/png",
		Cost:        s.calc.Calculate(1, model.String()),
		Params:      params,
	}, nil
}
