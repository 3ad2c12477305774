package einochat

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"aisuite/internal/ai"
	"aisuite/internal/ai/chatcontext"
	"aisuite/internal/ai/cost"
	"aisuite/internal/ai/tokenizer"
	"aisuite/internal/model/conversation"
)

// ChatService 基于 eino ChatModel 的对话、补全与标题生成
// 每个模型名对应一个已配置好的 ChatModel 实例
type ChatService struct {
	provider string
	models   ai.SupportList
	chats    map[ai.Model]model.BaseChatModel
	builder  *chatcontext.Builder
	calc     *cost.Calculator
	tokens   tokenizer.Estimator
}

// NewChatService 创建服务，chats 的键即支持的模型
func NewChatService(provider string, chats map[ai.Model]model.BaseChatModel, order []ai.Model, builder *chatcontext.Builder, calc *cost.Calculator, tokens tokenizer.Estimator) *ChatService {
	if tokens == nil {
		tokens = tokenizer.Default()
	}
	models := make(ai.SupportList, 0, len(order))
	for _, m := range order {
		if _, ok := chats[m]; ok {
			models = append(models, m)
		}
	}
	return &ChatService{
		provider: provider,
		models:   models,
		chats:    chats,
		builder:  builder,
		calc:     calc,
		tokens:   tokens,
	}
}

func (s *ChatService) SupportsModel(m ai.Model) bool {
	return s.models.Contains(m)
}

func (s *ChatService) Models() []ai.Model {
	return s.models
}

// GenerateMessage 以 msg 为叶子构建上下文并流式生成
func (s *ChatService) GenerateMessage(ctx context.Context, m ai.Model, msg *conversation.Message) (*ai.Stream, error) {
	chat, ok := s.chats[m]
	if !ok {
		return nil, ai.ModelNotSupported(m)
	}

	built := s.builder.Build(ctx, msg, chatcontext.Options{
		Dialect:          chatcontext.DialectOpenAI,
		MaxContextTokens: chatcontext.ContextWindow(m.String()),
	})
	return s.stream(ctx, chat, m, toSchemaMessages(built), built.InputTokens)
}

// GenerateCompletion 单轮补全
func (s *ChatService) GenerateCompletion(ctx context.Context, m ai.Model, params ai.Params) (*ai.Stream, error) {
	chat, ok := s.chats[m]
	if !ok {
		return nil, ai.ModelNotSupported(m)
	}
	prompt, err := params.Prompt()
	if err != nil {
		return nil, err
	}

	var opts []model.Option
	if v, ok := params.Float("temperature"); ok {
		opts = append(opts, model.WithTemperature(float32(v)))
	}
	return s.stream(ctx, chat, m, []*schema.Message{schema.UserMessage(prompt)}, s.tokens.Count(prompt), opts...)
}

// GenerateTitle 内容为空时不调用模型
func (s *ChatService) GenerateTitle(ctx context.Context, content string, m ai.Model) (*ai.TitleResult, error) {
	chat, ok := s.chats[m]
	if !ok {
		return nil, ai.ModelNotSupported(m)
	}

	seed := ai.TitleSeed(content)
	if seed == "" {
		return &ai.TitleResult{Title: ai.UntitledTitle, Cost: cost.Zero}, nil
	}

	resp, err := chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(ai.TitleSystemPrompt),
		schema.UserMessage(ai.TitleUserPrompt(seed)),
	}, model.WithMaxTokens(64))
	if err != nil {
		return nil, s.wrap(ctx, err)
	}

	amount := cost.Zero
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		amount = s.tokenCost(m, resp.ResponseMeta.Usage.PromptTokens, resp.ResponseMeta.Usage.CompletionTokens)
	}
	return &ai.TitleResult{Title: ai.NormalizeTitle(resp.Content), Cost: amount}, nil
}

func (s *ChatService) stream(ctx context.Context, chat model.BaseChatModel, m ai.Model, messages []*schema.Message, inputEstimate int, opts ...model.Option) (*ai.Stream, error) {
	sr, err := chat.Stream(ctx, messages, opts...)
	if err != nil {
		return nil, s.wrap(ctx, err)
	}
	return ai.NewStream(&readerSource{svc: s, ctx: ctx, model: m, sr: sr, input: inputEstimate}), nil
}

// wrap 把模型错误转换为厂商错误，取消与超时原样返回
func (s *ChatService) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return ai.NewApiError(s.provider, 0, err.Error())
}

func (s *ChatService) tokenCost(m ai.Model, input, output int) cost.Count {
	return s.calc.Calculate(float64(input), m.String(), cost.Input).
		Add(s.calc.Calculate(float64(output), m.String(), cost.Output))
}

// readerSource 将 eino StreamReader 转换为 ai.TokenSource
type readerSource struct {
	svc      *ChatService
	ctx      context.Context
	model    ai.Model
	sr       *schema.StreamReader[*schema.Message]
	input    int
	output   int
	reported bool
}

func (r *readerSource) Recv() (ai.Token, error) {
	for {
		chunk, err := r.sr.Recv()
		if errors.Is(err, io.EOF) {
			return ai.Token{}, io.EOF
		}
		if err != nil {
			return ai.Token{}, r.svc.wrap(r.ctx, err)
		}
		if chunk == nil {
			continue
		}

		if chunk.ResponseMeta != nil && chunk.ResponseMeta.Usage != nil {
			usage := chunk.ResponseMeta.Usage
			if usage.PromptTokens > 0 || usage.CompletionTokens > 0 {
				r.reported = true
				r.input = usage.PromptTokens
				r.output = usage.CompletionTokens
			}
		}
		if chunk.Content == "" {
			continue
		}
		if !r.reported {
			r.output++
		}
		return ai.Token{Content: chunk.Content}, nil
	}
}

func (r *readerSource) Result() ai.Result {
	log.Debug().
		Str("provider", r.svc.provider).
		Str("model", r.model.String()).
		Int("input_tokens", r.input).
		Int("output_tokens", r.output).
		Bool("reported", r.reported).
		Msg("chat stream settled")
	return ai.Result{
		Usage: ai.Usage{InputTokens: r.input, OutputTokens: r.output},
		Cost:  r.svc.tokenCost(r.model, r.input, r.output),
	}
}

func (r *readerSource) Close() error {
	r.sr.Close()
	return nil
}

// toSchemaMessages 指令作为首个 system 消息，含图片的轮使用多段内容
func toSchemaMessages(built *chatcontext.Context) []*schema.Message {
	out := make([]*schema.Message, 0, len(built.Turns)+1)
	if built.System != "" {
		out = append(out, schema.SystemMessage(built.System))
	}

	for _, turn := range built.Turns {
		msg := &schema.Message{Role: schema.RoleType(turn.Role)}
		if !turn.HasImage() {
			msg.Content = turn.Text()
			out = append(out, msg)
			continue
		}

		for _, p := range turn.Parts {
			switch p.Type {
			case chatcontext.PartImage:
				msg.MultiContent = append(msg.MultiContent, schema.ChatMessagePart{
					Type:     schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{URL: "data:" + p.MediaType + ";base64," + p.Data},
				})
			case chatcontext.PartText:
				msg.MultiContent = append(msg.MultiContent, schema.ChatMessagePart{
					Type: schema.ChatMessagePartTypeText,
					Text: p.Text,
				})
			}
		}
		out = append(out, msg)
	}
	return out
}
