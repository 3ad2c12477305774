package chatcontext

import (
	"context"
	"encoding/base64"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"aisuite/internal/ai/tokenizer"
	"aisuite/internal/model/conversation"
)

const (
	// DefaultMaxMessages 最多回溯的轮数
	DefaultMaxMessages = 20
	// DefaultMaxImages 最多带上的图片数
	DefaultMaxImages = 2

	quotePrefix = "The user is referring to this in particular:\n"
)

// Dialect 厂商在上下文格式上的差异
type Dialect int

const (
	// DialectOpenAI 引用作为独立的 system 轮放在消息之前，指令作为首个 system 轮
	DialectOpenAI Dialect = iota
	// DialectAnthropic 引用追加到正文，首轮不是 user 时补一个占位轮，指令放在 system 字段
	DialectAnthropic
)

// PartType 内容片段类型
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part 一轮中的内容片段
type Part struct {
	Type      PartType
	Text      string
	MediaType string // 例如 image/png
	Data      string // base64
}

// Turn 发给厂商的一轮对话
type Turn struct {
	Role  string
	Parts []Part
}

// Text 拼接所有文本片段
func (t Turn) Text() string {
	var sb strings.Builder
	for _, p := range t.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// HasImage 是否包含图片
func (t Turn) HasImage() bool {
	for _, p := range t.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// Context 构建结果
type Context struct {
	System      string // 助手人设指令，为空表示没有
	Turns       []Turn // 由根到叶
	InputTokens int    // 已计入预算的估算 token
	Images      int
}

// FileReader 读取消息附图内容
type FileReader interface {
	ReadImage(ctx context.Context, img *conversation.ImageFile) ([]byte, error)
}

// Options 单次构建参数
type Options struct {
	Dialect          Dialect
	MaxContextTokens int
}

// Builder 沿 parent 链回溯，生成受轮数、图片数和 token 预算约束的上下文
type Builder struct {
	files       FileReader
	estimator   tokenizer.Estimator
	maxMessages int
	maxImages   int
}

// NewBuilder 创建构建器，files 为空时不附带图片
func NewBuilder(files FileReader, estimator tokenizer.Estimator) *Builder {
	if estimator == nil {
		estimator = tokenizer.Default()
	}
	return &Builder{
		files:       files,
		estimator:   estimator,
		maxMessages: DefaultMaxMessages,
		maxImages:   DefaultMaxImages,
	}
}

// WithLimits 覆盖轮数与图片上限
func (b *Builder) WithLimits(maxMessages, maxImages int) *Builder {
	cp := *b
	cp.maxMessages = maxMessages
	cp.maxImages = maxImages
	return &cp
}

// Build 从 leaf 开始构建上下文
func (b *Builder) Build(ctx context.Context, leaf *conversation.Message, opts Options) *Context {
	budget := opts.MaxContextTokens
	if budget <= 0 {
		budget = DefaultContextWindow
	}

	out := &Context{}
	var reversed []Turn // 由叶到根收集，最后翻转

	for current := leaf; current != nil; current = current.Parent {
		if len(reversed) >= b.maxMessages {
			break
		}
		if current.Content == "" {
			continue
		}

		var parts []Part
		tokens := 0

		if current.Role == conversation.RoleUser && current.Image != nil && out.Images < b.maxImages {
			if part, ok := b.imagePart(ctx, current.Image); ok {
				parts = append(parts, part)
				tokens += ImageTokens(current.Image.Width, current.Image.Height)
			}
		}

		text := current.Content
		quoteTurn := false
		if current.Quote != "" {
			if opts.Dialect == DialectAnthropic {
				text += "\n\n" + quotePrefix + current.Quote
			} else {
				quoteTurn = true
			}
		}

		parts = append(parts, Part{Type: PartText, Text: text})
		tokens += b.estimator.Count(text)

		needed := 1
		if quoteTurn {
			needed = 2
			tokens += b.estimator.Count(quotePrefix + current.Quote)
		}
		if len(reversed)+needed > b.maxMessages {
			break
		}
		if out.InputTokens+tokens > budget {
			break
		}

		out.InputTokens += tokens
		for _, p := range parts {
			if p.Type == PartImage {
				out.Images++
			}
		}

		reversed = append(reversed, Turn{Role: string(current.Role), Parts: parts})
		if quoteTurn {
			reversed = append(reversed, Turn{
				Role:  "system",
				Parts: []Part{{Type: PartText, Text: quotePrefix + current.Quote}},
			})
		}
	}

	out.Turns = make([]Turn, 0, len(reversed)+1)
	for i := len(reversed) - 1; i >= 0; i-- {
		out.Turns = append(out.Turns, reversed[i])
	}

	if opts.Dialect == DialectAnthropic && len(out.Turns) > 0 && out.Turns[0].Role != string(conversation.RoleUser) {
		out.Turns = append([]Turn{{Role: string(conversation.RoleUser), Parts: []Part{{Type: PartText, Text: "-"}}}}, out.Turns...)
	}

	if leaf != nil && leaf.Assistant != nil && leaf.Assistant.Instructions != "" {
		out.System = leaf.Assistant.Instructions
	}

	return out
}

func (b *Builder) imagePart(ctx context.Context, img *conversation.ImageFile) (Part, bool) {
	if b.files == nil {
		return Part{}, false
	}
	data, err := b.files.ReadImage(ctx, img)
	if err != nil {
		log.Debug().Err(err).Str("storage_key", img.StorageKey).Msg("skip unreadable image")
		return Part{}, false
	}
	return Part{
		Type:      PartImage,
		MediaType: ImageMediaType(img.Ext),
		Data:      base64.StdEncoding.EncodeToString(data),
	}, true
}

// ImageMediaType 由扩展名得到 MIME 类型
func ImageMediaType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpg" {
		ext = "jpeg"
	}
	if ext == "" {
		ext = "png"
	}
	return "image/" + ext
}

// ImageTokens 估算一张图片的 token
// 先等比缩放到 2048x2048 以内；短边仍超过 768 时把宽缩到 768、高按比例缩放；
// 再按 512x512 分块，费用 = 170 x 块数 + 85
func ImageTokens(width, height int) int {
	if width <= 0 || height <= 0 {
		return 85
	}

	w, h := float64(width), float64(height)
	if w > 2048 {
		h = math.Floor(h * 2048 / w)
		w = 2048
	}
	if h > 2048 {
		w = math.Floor(w * 2048 / h)
		h = 2048
	}
	if math.Min(w, h) > 768 {
		h = math.Floor(h * 768 / w)
		w = 768
	}

	tiles := int(math.Ceil(w/512) + math.Ceil(h/512))
	return 170*tiles + 85
}
