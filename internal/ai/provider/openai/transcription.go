package openai

import (
	"context"
	"io"

	"aisuite/internal/ai"
	"aisuite/internal/ai/provider"
)

var transcriptionModels = ai.SupportList{"whisper-1"}

type transcriptionResponse struct {
	Text     string       `json:"text"`
	Language string       `json:"language"`
	Duration float64      `json:"duration"`
	Segments []ai.Segment `json:"segments"`
}

// TranscriptionService Whisper 语音转写
type TranscriptionService struct {
	client *Client
}

// NewTranscriptionService 创建转写服务
func NewTranscriptionService(client *Client) *TranscriptionService {
	return &TranscriptionService{client: client}
}

func (s *TranscriptionService) SupportsModel(model ai.Model) bool {
	return transcriptionModels.Contains(model)
}

func (s *TranscriptionService) Models() []ai.Model {
	return transcriptionModels
}

// GenerateTranscription 按音频时长计费
func (s *TranscriptionService) GenerateTranscription(ctx context.Context, model ai.Model, audio io.Reader, filename string, params ai.Params) (*ai.TranscriptionResult, error) {
	if !s.SupportsModel(model) {
		return nil, ai.ModelNotSupported(model)
	}
	if audio == nil {
		return nil, ai.NewDomainError("audio file is required", ai.ErrInvalidParameters)
	}

	fields := map[string]string{
		"model":           model.String(),
		"response_format": "verbose_json",
	}
	for _, key := range []string{"prompt", "language"} {
		if v := params.String(key); v != "" {
			fields[key] = v
		}
	}

	resp, err := s.client.transport.PostMultipart(ctx, "/v1/audio/transcriptions", fields, provider.FilePart{
		Field:    "file",
		Filename: filename,
		Reader:   audio,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out transcriptionResponse
	if err := s.client.transport.Decode(resp, &out); err != nil {
		return nil, err
	}

	return &ai.TranscriptionResult{
		Text:     out.Text,
		Language: out.Language,
		Duration: out.Duration,
		Segments: out.Segments,
		Cost:     s.client.calc.Calculate(out.Duration, model.String()),
	}, nil
}
