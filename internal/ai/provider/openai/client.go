package openai

import (
	"context"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/ai/provider"
	"aisuite/internal/ai/sse"
	"aisuite/internal/ai/tokenizer"
)

const (
	// DefaultBaseURL OpenAI API 地址
	DefaultBaseURL = "https://api.openai.com"
	providerName   = "openai"
	instructModel  = ai.Model("gpt-3.5-turbo-instruct")
)

var (
	chatModels = ai.SupportList{"gpt-4o", "gpt-4-turbo", "gpt-4-turbo-preview", "gpt-4", "gpt-3.5-turbo"}
	textModels = append(append(ai.SupportList{}, chatModels...), instructModel)
)

// Config OpenAI 配置
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
}

// Client OpenAI 各能力共享的客户端
type Client struct {
	transport *provider.Transport
	calc      *cost.Calculator
	tokens    tokenizer.Estimator
}

// Option 客户端选项
type Option func(*options)

type options struct {
	doer   provider.Doer
	tokens tokenizer.Estimator
}

// WithDoer 替换 HTTP 发送器
func WithDoer(d provider.Doer) Option {
	return func(o *options) { o.doer = d }
}

// WithEstimator 替换 token 估算器
func WithEstimator(e tokenizer.Estimator) Option {
	return func(o *options) { o.tokens = e }
}

// NewClient 创建客户端
func NewClient(cfg Config, calc *cost.Calculator, opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.tokens == nil {
		o.tokens = tokenizer.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	headers := map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	if cfg.Organization != "" {
		headers["OpenAI-Organization"] = cfg.Organization
	}

	return &Client{
		transport: provider.NewTransport(providerName, baseURL, headers, o.doer),
		calc:      calc,
		tokens:    o.tokens,
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string 或 []contentPart
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
}

type instructRequest struct {
	Model         string         `json:"model"`
	Prompt        string         `json:"prompt"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type apiErrorBody struct {
	Message string `json:"message"`
}

// chunk 同时覆盖 chat 与 instruct 两种响应
type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Usage *usage        `json:"usage"`
	Error *apiErrorBody `json:"error"`
}

func (c *chunk) text() string {
	if len(c.Choices) == 0 {
		return ""
	}
	choice := c.Choices[0]
	switch {
	case choice.Delta.Content != "":
		return choice.Delta.Content
	case choice.Message.Content != "":
		return choice.Message.Content
	default:
		return choice.Text
	}
}

// meter 累计流式用量，厂商在末尾返回 usage 时以其为准
type meter struct {
	input    int
	output   int
	reported bool
}

func (m *meter) observe(ch *chunk, text string) {
	if text != "" && !m.reported {
		m.output++
	}
	if ch.Usage != nil {
		m.reported = true
		m.input = ch.Usage.PromptTokens
		m.output = ch.Usage.CompletionTokens
	}
}

func temperature(params ai.Params) *float64 {
	if v, ok := params.Float("temperature"); ok {
		return &v
	}
	return nil
}

// stream 发送流式请求，inputEstimate 为厂商未返回 usage 时的输入 token 数
func (c *Client) stream(ctx context.Context, model ai.Model, path string, body any, inputEstimate int) (*ai.Stream, error) {
	resp, err := c.transport.PostJSON(ctx, path, body, "text/event-stream")
	if err != nil {
		return nil, err
	}

	m := &meter{input: inputEstimate}
	handle := func(ev sse.Event) (string, error) {
		var ch chunk
		if err := ev.Decode(&ch); err != nil {
			return "", ai.NewApiError(providerName, 0, "malformed stream chunk: "+err.Error())
		}
		if ch.Error != nil {
			return "", ai.NewApiError(providerName, 0, ch.Error.Message)
		}
		text := ch.text()
		m.observe(&ch, text)
		return text, nil
	}
	settle := func() ai.Result {
		return ai.Result{
			Usage: ai.Usage{InputTokens: m.input, OutputTokens: m.output},
			Cost:  c.tokenCost(model, m.input, m.output),
		}
	}

	return ai.NewStream(provider.NewEventSource(providerName, resp.Body, handle, settle)), nil
}

func (c *Client) streamChat(ctx context.Context, model ai.Model, messages []chatMessage, params ai.Params, inputEstimate int) (*ai.Stream, error) {
	return c.stream(ctx, model, "/v1/chat/completions", chatRequest{
		Model:         model.String(),
		Messages:      messages,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
		Temperature:   temperature(params),
	}, inputEstimate)
}

func (c *Client) streamInstruct(ctx context.Context, model ai.Model, prompt string, params ai.Params) (*ai.Stream, error) {
	return c.stream(ctx, model, "/v1/completions", instructRequest{
		Model:         model.String(),
		Prompt:        prompt,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
		Temperature:   temperature(params),
	}, c.tokens.Count(prompt))
}

func (c *Client) tokenCost(model ai.Model, input, output int) cost.Count {
	return c.calc.Calculate(float64(input), model.String(), cost.Input).
		Add(c.calc.Calculate(float64(output), model.String(), cost.Output))
}
