package anthropic

import (
	"context"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/ai/provider"
	"aisuite/internal/ai/sse"
)

const (
	// DefaultBaseURL Anthropic API 地址
	DefaultBaseURL = "https://api.anthropic.com"
	// APIVersion 请求头 Anthropic-Version
	APIVersion = "2023-06-01"

	providerName     = "anthropic"
	defaultMaxTokens = 4096
	titleMaxTokens   = 64
)

var models = ai.SupportList{"claude-3-opus-20240229", "claude-3-sonnet-20240229", "claude-3-haiku-20240307"}

// Config Anthropic 配置
type Config struct {
	APIKey  string
	BaseURL string
}

// Client Anthropic 各能力共享的客户端
type Client struct {
	transport *provider.Transport
	calc      *cost.Calculator
}

// NewClient 创建客户端，doer 为空时使用默认 http.Client
func NewClient(cfg Config, calc *cost.Calculator, doer provider.Doer) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		transport: provider.NewTransport(providerName, baseURL, map[string]string{
			"X-Api-Key":         cfg.APIKey,
			"Anthropic-Version": APIVersion,
		}, doer),
		calc: calc,
	}
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string 或 []contentBlock
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage usage `json:"usage"`
}

// event 流式事件的数据体
type event struct {
	Type  string `json:"type"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Message *struct {
		Usage usage `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Text string `json:"text"`
	} `json:"delta"`
	Usage *usage `json:"usage"`
}

// temperature 厂商取值范围为 0~1，入参按 0~2 折半
func temperature(params ai.Params) *float64 {
	if v, ok := params.Float("temperature"); ok {
		half := v / 2
		return &half
	}
	return nil
}

func (c *Client) stream(ctx context.Context, model ai.Model, req messagesRequest) (*ai.Stream, error) {
	req.Model = model.String()
	req.Stream = true
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}

	resp, err := c.transport.PostJSON(ctx, "/v1/messages", req, "text/event-stream")
	if err != nil {
		return nil, err
	}

	var total usage
	handle := func(sev sse.Event) (string, error) {
		var ev event
		if err := sev.Decode(&ev); err != nil {
			return "", ai.NewApiError(providerName, 0, "malformed stream event: "+err.Error())
		}
		if ev.Type == "" {
			ev.Type = sev.Type()
		}

		switch ev.Type {
		case "error":
			msg := "stream error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			return "", ai.NewApiError(providerName, 0, msg)
		case "message_start":
			if ev.Message != nil {
				total.InputTokens += ev.Message.Usage.InputTokens
				total.OutputTokens += ev.Message.Usage.OutputTokens
			}
		case "content_block_delta":
			if ev.Delta != nil {
				return ev.Delta.Text, nil
			}
		case "message_delta":
			if ev.Usage != nil {
				total.InputTokens += ev.Usage.InputTokens
				total.OutputTokens += ev.Usage.OutputTokens
			}
		}
		return "", nil
	}
	settle := func() ai.Result {
		return ai.Result{
			Usage: ai.Usage{InputTokens: total.InputTokens, OutputTokens: total.OutputTokens},
			Cost:  c.tokenCost(model, total.InputTokens, total.OutputTokens),
		}
	}

	return ai.NewStream(provider.NewEventSource(providerName, resp.Body, handle, settle)), nil
}

func (c *Client) tokenCost(model ai.Model, input, output int) cost.Count {
	return c.calc.Calculate(float64(input), model.String(), cost.Input).
		Add(c.calc.Calculate(float64(output), model.String(), cost.Output))
}
