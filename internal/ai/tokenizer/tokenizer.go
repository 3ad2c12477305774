package tokenizer

import (
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// Estimator 估算文本的 token 数，用于发请求前的预算
type Estimator interface {
	Count(text string) int
}

// Tiktoken 基于 cl100k_base 词表的估算器
type Tiktoken struct {
	codec tokenizer.Codec
}

var (
	defaultOnce sync.Once
	defaultEst  Estimator
)

// Default 进程级共享的估算器，词表加载失败时退化为按字符估算
func Default() Estimator {
	defaultOnce.Do(func() {
		est, err := NewTiktoken()
		if err != nil {
			log.Warn().Err(err).Msg("failed to load tiktoken codec, falling back to heuristic estimator")
			defaultEst = Heuristic{}
			return
		}
		defaultEst = est
	})
	return defaultEst
}

// NewTiktoken 创建 cl100k_base 估算器
func NewTiktoken() (*Tiktoken, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return &Tiktoken{codec: codec}, nil
}

// Count 编码后的 token 数
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return Heuristic{}.Count(text)
	}
	return len(ids)
}

// Heuristic 粗略估算：约 4 个字符一个 token
type Heuristic struct{}

// Count 按字符数估算
func (Heuristic) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
