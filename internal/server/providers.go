package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	"aisuite/internal/ai"
	"aisuite/internal/ai/chatcontext"
	"aisuite/internal/ai/component"
	"aisuite/internal/ai/cost"
	"aisuite/internal/ai/provider/anthropic"
	"aisuite/internal/ai/provider/ark"
	"aisuite/internal/ai/provider/einochat"
	"aisuite/internal/ai/provider/elevenlabs"
	"aisuite/internal/ai/provider/openai"
	"aisuite/internal/ai/provider/stabilityai"
	"aisuite/internal/ai/tokenizer"
	"aisuite/internal/config"
)

// providers 已注册的厂商服务
type providers struct {
	factory *ai.Factory
	voices  *elevenlabs.SpeechService // 未配置 ElevenLabs 时为空
}

// buildProviders 按配置注册厂商，注册顺序即同一模型的解析优先级
// api_key 为空的厂商跳过
func buildProviders(ctx context.Context, cfg *config.AIConfig, calc *cost.Calculator, builder *chatcontext.Builder, tokens tokenizer.Estimator) (*providers, error) {
	p := &providers{factory: ai.NewFactory()}
	register := func(capability ai.Capability, svc ai.Service) error {
		if err := p.factory.Register(capability, svc); err != nil {
			return fmt.Errorf("register %s: %w", capability, err)
		}
		return nil
	}

	if cfg.OpenAI.APIKey != "" {
		client := openai.NewClient(openai.Config{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL}, calc, openai.WithEstimator(tokens))
		for _, r := range []struct {
			capability ai.Capability
			svc        ai.Service
		}{
			{ai.CapabilityMessage, openai.NewMessageService(client, builder)},
			{ai.CapabilityCompletion, openai.NewCompletionService(client)},
			{ai.CapabilityCodeCompletion, openai.NewCodeCompletionService(client)},
			{ai.CapabilityImage, openai.NewImageService(client)},
			{ai.CapabilityTranscription, openai.NewTranscriptionService(client)},
			{ai.CapabilityTitle, openai.NewTitleService(client)},
		} {
			if err := register(r.capability, r.svc); err != nil {
				return nil, err
			}
		}
		log.Info().Str("provider", "openai").Msg("registered AI provider")
	}

	if cfg.ElevenLabs.APIKey != "" {
		speech := elevenlabs.NewSpeechService(elevenlabs.Config{APIKey: cfg.ElevenLabs.APIKey, BaseURL: cfg.ElevenLabs.BaseURL}, calc, nil)
		if err := register(ai.CapabilitySpeech, speech); err != nil {
			return nil, err
		}
		p.voices = speech
		log.Info().Str("provider", "elevenlabs").Msg("registered AI provider")
	}

	if cfg.StabilityAI.APIKey != "" {
		images := stabilityai.NewImageService(stabilityai.Config{APIKey: cfg.StabilityAI.APIKey, BaseURL: cfg.StabilityAI.BaseURL}, calc, nil)
		if err := register(ai.CapabilityImage, images); err != nil {
			return nil, err
		}
		log.Info().Str("provider", "stabilityai").Msg("registered AI provider")
	}

	if cfg.Anthropic.APIKey != "" {
		client := anthropic.NewClient(anthropic.Config{APIKey: cfg.Anthropic.APIKey, BaseURL: cfg.Anthropic.BaseURL}, calc, nil)
		for capability, svc := range map[ai.Capability]ai.Service{
			ai.CapabilityMessage:    anthropic.NewMessageService(client, builder),
			ai.CapabilityCompletion: anthropic.NewCompletionService(client),
			ai.CapabilityTitle:      anthropic.NewTitleService(client),
		} {
			if err := register(capability, svc); err != nil {
				return nil, err
			}
		}
		log.Info().Str("provider", "anthropic").Msg("registered AI provider")
	}

	if cfg.Ark.APIKey != "" {
		if len(cfg.Ark.Models) > 0 {
			chat, err := newEinoChat(ctx, "ark", cfg.Ark.Models, component.ChatModelConfig{
				Provider:  "ark",
				APIKey:    cfg.Ark.APIKey,
				BaseURL:   cfg.Ark.BaseURL,
				MaxTokens: cfg.Ark.MaxTokens,
			}, calc, builder, tokens)
			if err != nil {
				return nil, err
			}
			if err := registerChat(p.factory, chat); err != nil {
				return nil, err
			}
		}

		images, err := ark.NewImageService(ark.ImageConfig{APIKey: cfg.Ark.APIKey, BaseURL: cfg.Ark.BaseURL, Models: cfg.Ark.ImageModels}, calc)
		if err != nil {
			return nil, fmt.Errorf("ark image service: %w", err)
		}
		if err := register(ai.CapabilityImage, images); err != nil {
			return nil, err
		}
		log.Info().Str("provider", "ark").Strs("models", cfg.Ark.Models).Msg("registered AI provider")
	}

	if cfg.Azure.APIKey != "" && len(cfg.Azure.Deployments) > 0 {
		chat, err := newEinoChat(ctx, "azure", cfg.Azure.Deployments, component.ChatModelConfig{
			Provider:   "azure",
			APIKey:     cfg.Azure.APIKey,
			BaseURL:    cfg.Azure.BaseURL,
			APIVersion: cfg.Azure.APIVersion,
			MaxTokens:  cfg.Azure.MaxTokens,
		}, calc, builder, tokens)
		if err != nil {
			return nil, err
		}
		if err := registerChat(p.factory, chat); err != nil {
			return nil, err
		}
		log.Info().Str("provider", "azure").Strs("deployments", cfg.Azure.Deployments).Msg("registered AI provider")
	}

	return p, nil
}

// newEinoChat 为每个模型创建一个 eino ChatModel
func newEinoChat(ctx context.Context, name string, models []string, base component.ChatModelConfig, calc *cost.Calculator, builder *chatcontext.Builder, tokens tokenizer.Estimator) (*einochat.ChatService, error) {
	chats := make(map[ai.Model]model.BaseChatModel, len(models))
	order := make([]ai.Model, 0, len(models))
	for _, m := range models {
		cfg := base
		cfg.Model = m
		chat, err := component.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s chat model %s: %w", name, m, err)
		}
		chats[ai.Model(m)] = chat
		order = append(order, ai.Model(m))
	}
	return einochat.NewChatService(name, chats, order, builder, calc, tokens), nil
}

func registerChat(f *ai.Factory, chat *einochat.ChatService) error {
	for _, capability := range []ai.Capability{ai.CapabilityMessage, ai.CapabilityCompletion, ai.CapabilityTitle} {
		if err := f.Register(capability, chat); err != nil {
			return fmt.Errorf("register %s: %w", capability, err)
		}
	}
	return nil
}
