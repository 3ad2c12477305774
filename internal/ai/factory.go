package ai

import (
	"fmt"
	"sync"
)

// Factory 按能力分组的适配器注册表
// 同一能力下按注册顺序匹配，第一个 SupportsModel 为真的适配器胜出
type Factory struct {
	mu       sync.RWMutex
	services map[Capability][]Service
}

// NewFactory 创建空注册表
func NewFactory() *Factory {
	return &Factory{services: make(map[Capability][]Service)}
}

// Register 注册适配器，svc 必须实现 cap 对应的接口
func (f *Factory) Register(cap Capability, svc Service) error {
	if !implements(cap, svc) {
		return fmt.Errorf("service %T does not implement capability %s", svc, cap)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.services[cap] = append(f.services[cap], svc)
	return nil
}

// MustRegister 注册失败直接 panic，用于启动阶段
func (f *Factory) MustRegister(cap Capability, svc Service) *Factory {
	if err := f.Register(cap, svc); err != nil {
		panic(err)
	}
	return f
}

// Resolve 查找第一个支持 model 的适配器
func (f *Factory) Resolve(cap Capability, model Model) (Service, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, svc := range f.services[cap] {
		if svc.SupportsModel(model) {
			return svc, nil
		}
	}
	return nil, ModelNotSupported(model)
}

// Models 某能力下所有可用模型（去重，保持注册顺序）
func (f *Factory) Models(cap Capability) []Model {
	f.mu.RLock()
	defer f.mu.RUnlock()

	seen := make(map[Model]bool)
	var models []Model
	for _, svc := range f.services[cap] {
		for _, m := range svc.Models() {
			if !seen[m] {
				seen[m] = true
				models = append(models, m)
			}
		}
	}
	return models
}

// resolve 按能力查找并断言成具体接口
func resolve[T Service](f *Factory, cap Capability, model Model) (T, error) {
	var zero T
	svc, err := f.Resolve(cap, model)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %T registered for %s has wrong type", svc, cap)
	}
	return typed, nil
}

// MessageService 解析对话能力
func (f *Factory) MessageService(model Model) (MessageService, error) {
	return resolve[MessageService](f, CapabilityMessage, model)
}

// CompletionService 解析补全能力
func (f *Factory) CompletionService(model Model) (CompletionService, error) {
	return resolve[CompletionService](f, CapabilityCompletion, model)
}

// CodeCompletionService 解析代码补全能力
func (f *Factory) CodeCompletionService(model Model) (CodeCompletionService, error) {
	return resolve[CodeCompletionService](f, CapabilityCodeCompletion, model)
}

// ImageService 解析图片生成能力
func (f *Factory) ImageService(model Model) (ImageService, error) {
	return resolve[ImageService](f, CapabilityImage, model)
}

// SpeechService 解析语音合成能力
func (f *Factory) SpeechService(model Model) (SpeechService, error) {
	return resolve[SpeechService](f, CapabilitySpeech, model)
}

// TranscriptionService 解析转写能力
func (f *Factory) TranscriptionService(model Model) (TranscriptionService, error) {
	return resolve[TranscriptionService](f, CapabilityTranscription, model)
}

// TitleService 解析标题生成能力
func (f *Factory) TitleService(model Model) (TitleService, error) {
	return resolve[TitleService](f, CapabilityTitle, model)
}

func implements(cap Capability, svc Service) bool {
	switch cap {
	case CapabilityMessage:
		_, ok := svc.(MessageService)
		return ok
	case CapabilityCompletion:
		_, ok := svc.(CompletionService)
		return ok
	case CapabilityCodeCompletion:
		_, ok := svc.(CodeCompletionService)
		return ok
	case CapabilityImage:
		_, ok := svc.(ImageService)
		return ok
	case CapabilitySpeech:
		_, ok := svc.(SpeechService)
		return ok
	case CapabilityTranscription:
		_, ok := svc.(TranscriptionService)
		return ok
	case CapabilityTitle:
		_, ok := svc.(TitleService)
		return ok
	}
	return false
}
