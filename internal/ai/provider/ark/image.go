package ark

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
)

const (
	// DefaultBaseURL 火山方舟默认地址
	DefaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	// DefaultImageModel 默认文生图模型
	DefaultImageModel = "doubao-seedream-3-0-t2i-250415"

	providerName = "ark"
	defaultSize  = "1024x1024"
)

var errNoImage = errors.New("no b64_json in response data")

// ImageConfig 方舟图片生成配置
type ImageConfig struct {
	APIKey  string
	BaseURL string
	Models  []string // 为空时使用 DefaultImageModel
}

// generateFunc 调用图片接口并返回 base64 数据
type generateFunc func(ctx context.Context, req model.GenerateImagesRequest) (string, error)

// ImageService 方舟文生图
type ImageService struct {
	generate generateFunc
	models   ai.SupportList
	calc     *cost.Calculator
}

// NewImageService 创建图片服务
func NewImageService(cfg ImageConfig, calc *cost.Calculator) (*ImageService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := arkruntime.NewClientWithApiKey(cfg.APIKey, arkruntime.WithBaseUrl(baseURL))

	return newImageService(sdkGenerate(client), cfg.Models, calc), nil
}

func newImageService(generate generateFunc, names []string, calc *cost.Calculator) *ImageService {
	if len(names) == 0 {
		names = []string{DefaultImageModel}
	}
	models := make(ai.SupportList, 0, len(names))
	for _, n := range names {
		models = append(models, ai.Model(n))
	}
	return &ImageService{generate: generate, models: models, calc: calc}
}

func sdkGenerate(client *arkruntime.Client) generateFunc {
	return func(ctx context.Context, req model.GenerateImagesRequest) (string, error) {
		output, err := client.GenerateImages(ctx, req)
		if err != nil {
			return "", err
		}
		if len(output.Data) == 0 {
			return "", errNoImage
		}
		first := output.Data[0]
		if first.B64Json == nil {
			return "", errNoImage
		}
		return *first.B64Json, nil
	}
}

func (s *ImageService) SupportsModel(m ai.Model) bool {
	return s.models.Contains(m)
}

func (s *ImageService) Models() []ai.Model {
	return s.models
}

// GenerateImage 每张图按模型固定计费
func (s *ImageService) GenerateImage(ctx context.Context, m ai.Model, req ai.ImageRequest) (*ai.ImageResult, error) {
	if !s.SupportsModel(m) {
		return nil, ai.ModelNotSupported(m)
	}
	prompt, err := req.Params.Prompt()
	if err != nil {
		return nil, err
	}

	size := defaultSize
	if req.Width > 0 && req.Height > 0 {
		size = fmt.Sprintf("%dx%d", req.Width, req.Height)
	}
	responseFormat := "b64_json"
	watermark := req.Params.String("watermark") == "true"

	input := model.GenerateImagesRequest{
		Model:          m.String(),
		Prompt:         prompt,
		Size:           &size,
		ResponseFormat: &responseFormat,
		Watermark:      &watermark,
	}

	encoded, err := s.generate(ctx, input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error().Err(err).Str("model", m.String()).Msg("failed to call Ark GenerateImages API")
		return nil, ai.NewApiError(providerName, 0, err.Error())
	}

	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ai.NewApiError(providerName, 0, "failed to decode base64 image data: "+err.Error())
	}

	params := req.Params.Clone()
	params["size"] = size
	return &ai.ImageResult{
		Image:       image,
		ContentType: http.DetectContentType(image),
		Cost:        s.calc.Calculate(1, m.String()),
		Params:      params,
	}, nil
}
