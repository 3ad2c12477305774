package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
)

var imageModels = ai.SupportList{"dall-e-3", "dall-e-2"}

const (
	defaultImageWidth  = 1024
	defaultImageHeight = 1024
)

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// ImageService DALL·E 图片生成
type ImageService struct {
	client *Client
}

// NewImageService 创建图片服务
func NewImageService(client *Client) *ImageService {
	return &ImageService{client: client}
}

func (s *ImageService) SupportsModel(model ai.Model) bool {
	return imageModels.Contains(model)
}

func (s *ImageService) Models() []ai.Model {
	return imageModels
}

func (s *ImageService) GenerateImage(ctx context.Context, model ai.Model, req ai.ImageRequest) (*ai.ImageResult, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}
	prompt, err := req.Params.Prompt()
	if err != nil {
		return nil, err
	}

	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		width, height = defaultImageWidth, defaultImageHeight
	}

	body := imageRequest{
		Model:          model.String(),
		Prompt:         prompt,
		N:              1,
		Size:           fmt.Sprintf("%dx%d", width, height),
		ResponseFormat: "b64_json",
		Quality:        req.Params.String("quality"),
		Style:          req.Params.String("style"),
	}

	var resp imageResponse
	if err := s.client.transport.DoJSON(ctx, "/v1/images/generations", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ai.NewApiError(providerName, 0, "failed to generate image")
	}

	image, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, ai.NewApiError(providerName, 0, "invalid image payload: "+err.Error())
	}

	params := req.Params.Clone()
	params["size"] = body.Size
	if resp.Data[0].RevisedPrompt != "" {
		params["revised_prompt"] = resp.Data[0].RevisedPrompt
	}

	return &ai.ImageResult{
		Image:       image,
		ContentType: "image/png",
		Cost:        s.client.calc.Calculate(1, model.String(), cost.SizeFlag(width, height)|cost.QualityFlag(body.Quality)),
		Params:      params,
	}, nil
}
