package elevenlabs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"unicode/utf8"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/ai/provider"
)

const (
	// DefaultBaseURL ElevenLabs API 地址
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	providerName   = "elevenlabs"
)

var models = ai.SupportList{"eleven_multilingual_v2", "eleven_multilingual_v1", "eleven_monolingual_v1"}

// Config ElevenLabs 配置
type Config struct {
	APIKey  string
	BaseURL string
}

// VoiceInfo 可用于合成的声音
type VoiceInfo struct {
	ExternalID string   `json:"external_id"`
	Name       string   `json:"name"`
	Model      ai.Model `json:"model"`
	PreviewURL string   `json:"preview_url"`
	Gender     string   `json:"gender,omitempty"`
	Accent     string   `json:"accent,omitempty"`
	Age        string   `json:"age,omitempty"`
}

// SpeechService ElevenLabs 语音合成
type SpeechService struct {
	transport *provider.Transport
	calc      *cost.Calculator
	enabled   bool
}

// NewSpeechService 创建语音合成服务，doer 为空时使用默认 http.Client
func NewSpeechService(cfg Config, calc *cost.Calculator, doer provider.Doer) *SpeechService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &SpeechService{
		transport: provider.NewTransport(providerName, baseURL, map[string]string{"xi-api-key": cfg.APIKey}, doer),
		calc:      calc,
		enabled:   cfg.APIKey != "",
	}
}

func (s *SpeechService) SupportsModel(model ai.Model) bool {
	return models.Contains(model)
}

func (s *SpeechService) Models() []ai.Model {
	return models
}

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// GenerateSpeech 按字符数计费
func (s *SpeechService) GenerateSpeech(ctx context.Context, voice ai.Voice, params ai.Params) (*ai.SpeechResult, error) {
	if !s.SupportsModel(voice.Model) {
		return nil, ai.ModelNotSupported(voice.Model)
	}
	if voice.ExternalID == "" {
		return nil, ai.NewDomainError("voice is required", ai.ErrInvalidParameters)
	}
	prompt, err := params.Prompt()
	if err != nil {
		return nil, err
	}

	resp, err := s.transport.PostJSON(ctx, "/text-to-speech/"+url.PathEscape(voice.ExternalID), speechRequest{
		Text:    prompt,
		ModelID: voice.Model.String(),
	}, "audio/mpeg")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ai.NewApiError(providerName, resp.StatusCode, fmt.Sprintf("failed to read audio: %v", err))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	out := params.Clone()
	out["voice"] = voice.ExternalID
	return &ai.SpeechResult{
		Audio:       audio,
		ContentType: contentType,
		Cost:        s.calc.Calculate(float64(utf8.RuneCountInString(prompt)), voice.Model.String()),
		Params:      out,
	}, nil
}

type voicesResponse struct {
	Voices []struct {
		VoiceID                 string            `json:"voice_id"`
		Name                    string            `json:"name"`
		PreviewURL              string            `json:"preview_url"`
		HighQualityBaseModelIDs []string          `json:"high_quality_base_model_ids"`
		Labels                  map[string]string `json:"labels"`
	} `json:"voices"`
}

// Voices 列出带试听地址且模型受支持的声音，未配置密钥时返回空列表
func (s *SpeechService) Voices(ctx context.Context) ([]VoiceInfo, error) {
	if !s.enabled {
		return nil, nil
	}

	var resp voicesResponse
	if err := s.transport.GetJSON(ctx, "/voices", &resp); err != nil {
		return nil, err
	}

	voices := make([]VoiceInfo, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		if v.PreviewURL == "" {
			continue
		}
		model := models[0]
		if len(v.HighQualityBaseModelIDs) > 0 {
			model = ai.Model(v.HighQualityBaseModelIDs[0])
		}
		if !models.Contains(model) {
			continue
		}
		voices = append(voices, VoiceInfo{
			ExternalID: v.VoiceID,
			Name:       v.Name,
			Model:      model,
			PreviewURL: v.PreviewURL,
			Gender:     v.Labels["gender"],
			Accent:     v.Labels["accent"],
			Age:        v.Labels["age"],
		})
	}
	return voices, nil
}
