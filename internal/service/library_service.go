package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"aisuite/internal/ai"
	"aisuite/internal/ai/provider/elevenlabs"
	"aisuite/internal/model/library"
	"aisuite/internal/pkg/cache"
	"aisuite/internal/pkg/id"
	"aisuite/internal/repository"
)

// FileSaver 保存生成的文件
type FileSaver interface {
	SaveLibraryFile(ctx context.Context, itemType library.ItemType, data []byte, contentType string) (*library.File, error)
}

// VoiceCatalog 可用声音列表
type VoiceCatalog interface {
	Voices(ctx context.Context) ([]elevenlabs.VoiceInfo, error)
}

// LibraryService 图片、语音、转写与补全等单次生成
type LibraryService struct {
	factory *ai.Factory
	billing *Billing
	items   LibraryStore
	files   FileSaver
	voices  VoiceCatalog
	cache   Cache
}

// NewLibraryService 创建生成物服务，voices 与 cache 可以为空
func NewLibraryService(factory *ai.Factory, billing *Billing, items LibraryStore, files FileSaver, voices VoiceCatalog, c Cache) *LibraryService {
	return &LibraryService{
		factory: factory,
		billing: billing,
		items:   items,
		files:   files,
		voices:  voices,
		cache:   c,
	}
}

func newItem(actor Actor, itemType library.ItemType, model ai.Model) *library.Item {
	return &library.Item{
		ID:          id.New(),
		Type:        itemType,
		WorkspaceID: actor.WorkspaceID,
		UserID:      actor.UserID,
		Model:       model.String(),
		CreatedAt:   time.Now(),
	}
}

// titleFrom 用 prompt 开头作为生成物标题
func titleFrom(params ai.Params) string {
	seed := ai.TitleSeed(params.String("prompt"))
	if seed == "" {
		return ai.UntitledTitle
	}
	return ai.NormalizeTitle(seed)
}

// save 写入生成物记录并扣费，记录写入失败不影响已经产生的扣费
func (s *LibraryService) save(ctx context.Context, item *library.Item, source string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.items.Create(ctx, item); err != nil {
		log.Error().Err(err).Str("item_id", item.ID).Str("type", string(item.Type)).Msg("failed to save library item")
	}
	s.billing.Charge(ctx, item.WorkspaceID, item.Cost, source, ai.Model(item.Model))
}

// ImageInput 图片生成参数
type ImageInput struct {
	Model  ai.Model
	Width  int
	Height int
	Params ai.Params
}

// GenerateImage 生成图片并保存到 CDN
func (s *LibraryService) GenerateImage(ctx context.Context, actor Actor, in ImageInput) (*library.Item, error) {
	if _, err := s.billing.Authorize(ctx, actor.WorkspaceID); err != nil {
		return nil, err
	}
	svc, err := s.factory.ImageService(in.Model)
	if err != nil {
		return nil, err
	}

	res, err := svc.GenerateImage(ctx, in.Model, ai.ImageRequest{Width: in.Width, Height: in.Height, Params: in.Params})
	if err != nil {
		return nil, err
	}

	file, err := s.files.SaveLibraryFile(ctx, library.ItemTypeImage, res.Image, res.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	item := newItem(actor, library.ItemTypeImage, in.Model)
	item.Title = titleFrom(res.Params)
	item.Cost = res.Cost
	item.Params = res.Params
	item.File = file
	s.save(ctx, item, SourceImage)
	return item, nil
}

// SpeechInput 语音合成参数
type SpeechInput struct {
	VoiceID string
	Model   ai.Model // 为空时使用声音列表中的模型
	Params  ai.Params
}

// GenerateSpeech 合成语音并保存到 CDN
func (s *LibraryService) GenerateSpeech(ctx context.Context, actor Actor, in SpeechInput) (*library.Item, error) {
	if strings.TrimSpace(in.VoiceID) == "" {
		return nil, ai.NewDomainError("voice_id is required", ai.ErrInvalidParameters)
	}
	if _, err := s.billing.Authorize(ctx, actor.WorkspaceID); err != nil {
		return nil, err
	}

	model := in.Model
	if model == "" {
		m, err := s.voiceModel(ctx, in.VoiceID)
		if err != nil {
			return nil, err
		}
		model = m
	}

	svc, err := s.factory.SpeechService(model)
	if err != nil {
		return nil, err
	}

	res, err := svc.GenerateSpeech(ctx, ai.Voice{ExternalID: in.VoiceID, Model: model}, in.Params)
	if err != nil {
		return nil, err
	}

	file, err := s.files.SaveLibraryFile(ctx, library.ItemTypeSpeech, res.Audio, res.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}

	item := newItem(actor, library.ItemTypeSpeech, model)
	item.Title = titleFrom(res.Params)
	item.Cost = res.Cost
	item.Params = res.Params
	item.File = file
	s.save(ctx, item, SourceSpeech)
	return item, nil
}

// TranscriptionInput 转写参数
type TranscriptionInput struct {
	Model    ai.Model
	Audio    io.Reader
	Filename string
	Params   ai.Params
}

// Transcribe 转写音频，只保存文本结果
func (s *LibraryService) Transcribe(ctx context.Context, actor Actor, in TranscriptionInput) (*library.Item, error) {
	if _, err := s.billing.Authorize(ctx, actor.WorkspaceID); err != nil {
		return nil, err
	}
	svc, err := s.factory.TranscriptionService(in.Model)
	if err != nil {
		return nil, err
	}

	res, err := svc.GenerateTranscription(ctx, in.Model, in.Audio, in.Filename, in.Params)
	if err != nil {
		return nil, err
	}

	segments := make([]library.Segment, 0, len(res.Segments))
	for _, seg := range res.Segments {
		segments = append(segments, library.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}

	item := newItem(actor, library.ItemTypeTranscription, in.Model)
	item.Title = in.Filename
	item.Cost = res.Cost
	item.Params = in.Params
	item.Output = &library.Output{
		Text:     res.Text,
		Language: res.Language,
		Duration: res.Duration,
		Segments: segments,
	}
	s.save(ctx, item, SourceTranscription)
	return item, nil
}

// Complete 流式文本补全，token 之后输出 done 事件，携带保存的生成物
func (s *LibraryService) Complete(ctx context.Context, actor Actor, model ai.Model, params ai.Params, emit EmitFunc) error {
	if _, err := params.Prompt(); err != nil {
		return err
	}
	if _, err := s.billing.Authorize(ctx, actor.WorkspaceID); err != nil {
		return err
	}
	svc, err := s.factory.CompletionService(model)
	if err != nil {
		return err
	}

	return s.streamItem(ctx, actor, model, params, SourceCompletion, emit, func() (*ai.Stream, error) {
		return svc.GenerateCompletion(ctx, model, params)
	})
}

// CompleteCode 流式代码补全
func (s *LibraryService) CompleteCode(ctx context.Context, actor Actor, model ai.Model, prompt, language string, emit EmitFunc) error {
	params := ai.Params{"prompt": prompt, "language": language}
	if _, err := params.Prompt(); err != nil {
		return err
	}
	if _, err := s.billing.Authorize(ctx, actor.WorkspaceID); err != nil {
		return err
	}
	svc, err := s.factory.CodeCompletionService(model)
	if err != nil {
		return err
	}

	return s.streamItem(ctx, actor, model, params, SourceCodeCompletion, emit, func() (*ai.Stream, error) {
		return svc.GenerateCodeCompletion(ctx, model, prompt, language)
	})
}

func (s *LibraryService) streamItem(
	ctx context.Context,
	actor Actor,
	model ai.Model,
	params ai.Params,
	source string,
	emit EmitFunc,
	open func() (*ai.Stream, error),
) error {
	stream, err := open()
	if err != nil {
		return err
	}

	content, result, err := relay(ctx, stream, emit)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, errClientGone) {
			return err
		}
		log.Error().Err(err).Str("model", model.String()).Str("source", source).Msg("completion failed")
		_ = emit(Event{Type: EventError, Data: err.Error()})
		return err
	}

	item := newItem(actor, library.ItemTypeCompletion, model)
	item.Title = titleFrom(params)
	item.Cost = result.Cost
	item.Params = params
	item.Output = &library.Output{Text: content}
	s.save(ctx, item, source)

	if ctx.Err() != nil {
		return nil
	}
	return emit(Event{Type: EventDone, Data: item})
}

// Voices 可用声音，结果缓存在 Redis 中
func (s *LibraryService) Voices(ctx context.Context) ([]elevenlabs.VoiceInfo, error) {
	if s.voices == nil {
		return []elevenlabs.VoiceInfo{}, nil
	}

	var voices []elevenlabs.VoiceInfo
	if s.cache != nil {
		err := s.cache.Get(ctx, cache.VoiceListKey, &voices)
		if err == nil {
			return voices, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Msg("failed to read voice cache")
		}
	}

	voices, err := s.voices.Voices(ctx)
	if err != nil {
		return nil, err
	}
	if voices == nil {
		voices = []elevenlabs.VoiceInfo{}
	}

	if s.cache != nil && len(voices) > 0 {
		if err := s.cache.Set(ctx, cache.VoiceListKey, voices, cache.VoiceListTTL); err != nil {
			log.Warn().Err(err).Msg("failed to cache voices")
		}
	}
	return voices, nil
}

func (s *LibraryService) voiceModel(ctx context.Context, voiceID string) (ai.Model, error) {
	voices, err := s.Voices(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range voices {
		if v.ExternalID == voiceID {
			return v.Model, nil
		}
	}
	return "", fmt.Errorf("%w: voice %s", ai.ErrNotFound, voiceID)
}

// List 分页列出生成物
func (s *LibraryService) List(ctx context.Context, actor Actor, itemType library.ItemType, page repository.Page) ([]*library.Item, int64, error) {
	return s.items.ListByUser(ctx, actor.WorkspaceID, actor.UserID, itemType, page)
}

// Get 获取生成物
func (s *LibraryService) Get(ctx context.Context, actor Actor, itemID string) (*library.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.WorkspaceID != actor.WorkspaceID || item.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: library item %s", ai.ErrNotFound, itemID)
	}
	return item, nil
}

// Delete 删除生成物记录
func (s *LibraryService) Delete(ctx context.Context, actor Actor, itemID string) error {
	if _, err := s.Get(ctx, actor, itemID); err != nil {
		return err
	}
	return s.items.Delete(ctx, itemID)
}
